package config

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends accepted in QUEUE_STORE.
const (
	StoreMemory   = "memory"
	StoreMySQL    = "mysql"
	StorePostgres = "postgres"
)

type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	QueueStore string

	// MariaDB / MySQL
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string

	// Postgres
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	JWTSecret     string
	OperatorRoles []string

	ResyncInterval time.Duration
	WSSendBuffer   int
	CORSOrigins    []string
}

var (
	cfg  *Config
	once sync.Once
)

// LoadConfig membaca .env sekali lalu mengembalikan konfigurasi yang sama
// untuk seluruh proses.
func LoadConfig() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found. Relying on environment variables.")
		}
		cfg = Load()
	})
	return cfg
}

// Load reads the configuration from the environment without caching it.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("QUEUE_STORE", StoreMemory)
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("OPERATOR_ROLES", "secretary,admin")
	v.SetDefault("RESYNC_INTERVAL", "30s")
	v.SetDefault("WS_SEND_BUFFER", 8)
	v.SetDefault("CORS_ORIGINS", "*")

	return &Config{
		AppEnv:         v.GetString("APP_ENV"),
		Port:           v.GetString("PORT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		QueueStore:     strings.ToLower(v.GetString("QUEUE_STORE")),
		DBUser:         v.GetString("DB_USER"),
		DBPassword:     v.GetString("DB_PASSWORD"),
		DBHost:         v.GetString("DB_HOST"),
		DBPort:         v.GetString("DB_PORT"),
		DBName:         v.GetString("DB_NAME"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		DBMaxConns:     v.GetInt32("DB_MAX_CONNS"),
		DBMinConns:     v.GetInt32("DB_MIN_CONNS"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		OperatorRoles:  splitList(v.GetString("OPERATOR_ROLES")),
		ResyncInterval: v.GetDuration("RESYNC_INTERVAL"),
		WSSendBuffer:   v.GetInt("WS_SEND_BUFFER"),
		CORSOrigins:    splitList(v.GetString("CORS_ORIGINS")),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.AppEnv == "development"
}

// devJWTSecret signs operator tokens when APP_ENV=development and no
// JWT_SECRET is set. Validate refuses it anywhere else.
const devJWTSecret = "meditrakk-development-secret"

// SigningSecret returns the HMAC key used for operator bearer tokens.
func (c *Config) SigningSecret() []byte {
	if c.JWTSecret == "" && c.IsDev() {
		return []byte(devJWTSecret)
	}
	return []byte(c.JWTSecret)
}

// MySQLDSN builds the go-sql-driver DSN for the MariaDB store.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=UTC",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// Validate checks that the chosen store has what it needs and that operator
// tokens can be verified outside development.
func (c *Config) Validate() error {
	switch c.QueueStore {
	case StoreMemory:
	case StoreMySQL:
		if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
			return fmt.Errorf("DB_HOST, DB_USER and DB_NAME are required when QUEUE_STORE=%s", StoreMySQL)
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when QUEUE_STORE=%s", StorePostgres)
		}
	default:
		return fmt.Errorf("QUEUE_STORE must be %q, %q or %q, got %q", StoreMemory, StoreMySQL, StorePostgres, c.QueueStore)
	}

	if c.JWTSecret == "" && !c.IsDev() {
		return fmt.Errorf("JWT_SECRET is required when APP_ENV=%q", c.AppEnv)
	}
	if c.ResyncInterval <= 0 {
		return fmt.Errorf("RESYNC_INTERVAL must be a positive duration")
	}
	if c.WSSendBuffer < 1 {
		return fmt.Errorf("WS_SEND_BUFFER must be at least 1, got %d", c.WSSendBuffer)
	}
	return nil
}
