// Package config reads the peer's settings from the environment, with
// an optional .env file. Defaults match a standalone node: issuance
// every 20 minutes, listener on 61001, in-memory storage.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	TokenName string

	// networking
	BindAddr         string
	Port             int
	SocketTimeout    time.Duration
	BufferSize       int
	MaxPayloadFactor int // max request size as a multiple of BufferSize
	MaxConns         int // concurrent inbound handler cap, 0 = unbounded

	// issuance
	IssuanceInterval time.Duration
	IssuanceAmount   decimal.Decimal

	// identity
	AddressPrefix string
	AddressLength int

	// storage and consumers
	DatabaseURL  string   // empty selects the in-memory store
	KafkaBrokers []string // empty disables the kafka event sink
	KafkaTopic   string
	HistoryLimit int
}

// Load reads .env (if present) and the environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		TokenName:        env("TOKEN_NAME", "ONTIME"),
		BindAddr:         env("PEER_BIND_ADDR", ""),
		Port:             envInt("PEER_PORT", 61001),
		SocketTimeout:    envDuration("SOCKET_TIMEOUT", 15*time.Second),
		BufferSize:       envInt("SOCKET_BUFFER_SIZE", 2048),
		MaxPayloadFactor: envInt("MAX_PAYLOAD_FACTOR", 10),
		MaxConns:         envInt("MAX_INBOUND_CONNS", 64),
		IssuanceInterval: envDuration("ISSUANCE_INTERVAL", 20*time.Minute),
		IssuanceAmount:   envDecimal("ISSUANCE_AMOUNT", decimal.NewFromInt(1)),
		AddressPrefix:    env("ADDRESS_PREFIX", "LGBX_"),
		AddressLength:    envInt("ADDRESS_LENGTH", 32),
		DatabaseURL:      env("DATABASE_URL", ""),
		KafkaBrokers:     envList("KAFKA_BROKERS"),
		KafkaTopic:       env("KAFKA_TOPIC", "ledger_events"),
		HistoryLimit:     envInt("HISTORY_LIMIT", 100),
	}
}

// MaxPayload is the inbound request size bound.
func (c Config) MaxPayload() int {
	return c.BufferSize * c.MaxPayloadFactor
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
