package board

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
	"github.com/raptaro/meditrakk-sub001/ws"
)

const defaultResync = 30 * time.Second

// Board keeps a terminal in sync with the server's display feed. It prefers
// the websocket push channel, re-reads the HTTP endpoint once per resync
// interval even while connected, and falls back to polling alone while the
// push channel is down.
type Board struct {
	BaseURL string
	Out     io.Writer
	Logger  zerolog.Logger
	HTTP    *http.Client
	Dialer  *websocket.Dialer

	mu        sync.Mutex
	resync    time.Duration
	generated time.Time
	retimed   chan struct{}
}

func New(baseURL string, out io.Writer, logger zerolog.Logger) *Board {
	return &Board{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Out:     out,
		Logger:  logger,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Dialer:  websocket.DefaultDialer,
		resync:  defaultResync,
		retimed: make(chan struct{}, 1),
	}
}

func (b *Board) displayURL() string {
	return b.BaseURL + "/api/queue/display"
}

func (b *Board) streamURL() (string, error) {
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/queue/display"
	return u.String(), nil
}

func (b *Board) resyncInterval() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resync
}

func (b *Board) draw(snap models.DisplaySnapshot, stale bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.drawLocked(snap, stale)
}

// drawResynced draws a polled snapshot unless a newer push already landed.
func (b *Board) drawResynced(snap models.DisplaySnapshot) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if snap.GeneratedAt.Before(b.generated) {
		return false
	}
	b.drawLocked(snap, false)
	return true
}

func (b *Board) drawLocked(snap models.DisplaySnapshot, stale bool) {
	if snap.ResyncAfterSeconds > 0 {
		if d := time.Duration(snap.ResyncAfterSeconds) * time.Second; d != b.resync {
			b.resync = d
			select {
			case b.retimed <- struct{}{}:
			default:
			}
		}
	}
	if snap.GeneratedAt.After(b.generated) {
		b.generated = snap.GeneratedAt
	}
	// clear screen, cursor home
	fmt.Fprint(b.Out, "\x1b[2J\x1b[H")
	fmt.Fprintln(b.Out, Render(snap, stale))
}

// Fetch reads the display snapshot from the poll endpoint.
func (b *Board) Fetch(ctx context.Context) (models.DisplaySnapshot, error) {
	var snap models.DisplaySnapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.displayURL(), nil)
	if err != nil {
		return snap, err
	}
	resp, err := b.HTTP.Do(req)
	if err != nil {
		return snap, fmt.Errorf("fetch display: %w", err)
	}
	defer resp.Body.Close()

	var env struct {
		Status  int                    `json:"status"`
		Message string                 `json:"message"`
		Data    models.DisplaySnapshot `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return snap, fmt.Errorf("decode display: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("fetch display: %d %s", resp.StatusCode, env.Message)
	}
	return env.Data, nil
}

// stream draws every pushed snapshot until the connection drops. A missed
// push is repaired by the resync loop running alongside it.
func (b *Board) stream(ctx context.Context) error {
	target, err := b.streamURL()
	if err != nil {
		return err
	}
	conn, _, err := b.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	resyncCtx, cancelResync := context.WithCancel(ctx)
	defer cancelResync()
	go b.resyncLoop(resyncCtx)

	b.Logger.Info().Str("url", target).Msg("board connected")
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		var frame ws.Frame
		if err := json.Unmarshal(msg, &frame); err != nil || frame.Type != ws.FrameQueueSnapshot {
			continue
		}
		var snap models.DisplaySnapshot
		if err := json.Unmarshal(frame.Data, &snap); err != nil {
			b.Logger.Warn().Err(err).Msg("bad display snapshot")
			continue
		}
		b.draw(snap, false)
	}
}

// resyncLoop re-reads the poll endpoint once per resync interval until ctx
// is done.
func (b *Board) resyncLoop(ctx context.Context) {
	timer := time.NewTimer(b.resyncInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.retimed:
			timer.Reset(b.resyncInterval())
			continue
		case <-timer.C:
		}
		snap, err := b.Fetch(ctx)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			b.Logger.Warn().Err(err).Msg("resync display")
		default:
			if !b.drawResynced(snap) {
				b.Logger.Debug().Time("generated_at", snap.GeneratedAt).Msg("resync older than last push")
			}
		}
		timer.Reset(b.resyncInterval())
	}
}

// Run follows the display feed until ctx is cancelled. Whenever the push
// channel is unavailable it redraws from the poll endpoint, marked offline,
// once per resync interval and then tries to reconnect.
func (b *Board) Run(ctx context.Context) error {
	for {
		err := b.stream(ctx)
		if ctx.Err() != nil {
			return nil
		}
		b.Logger.Warn().Err(err).Msg("display stream unavailable, polling")

		if snap, err := b.Fetch(ctx); err != nil {
			b.Logger.Warn().Err(err).Msg("poll display")
		} else {
			b.draw(snap, true)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(b.resyncInterval()):
		}
	}
}
