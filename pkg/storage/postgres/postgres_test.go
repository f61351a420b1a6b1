package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPool_BadURL(t *testing.T) {
	_, err := NewPool(context.Background(), "::not a url::", 4, 1)
	assert.ErrorContains(t, err, "parse database url")
}
