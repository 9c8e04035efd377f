package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/scythe504/winenight-backend/internal"
)

// Config holds runtime configuration for the Wine Night server.
type Config struct {
	Bind           string
	Port           int
	PublicURL      string
	AllowedOrigins string

	DatabaseURL string
	Migrate     bool

	MaxPlayers      int
	RoundStartDelay time.Duration
	RoundDuration   time.Duration
	CodeAttempts    int
	StoreTimeout    time.Duration

	MessagesPerSecond float64
	MessageBurst      int
	SendBuffer        int

	GrapeAliases string
	LogLevel     string
	LogFormat    string
}

// Default returns the configuration used when no flag or variable is set.
func Default() Config {
	return Config{
		Bind:              "0.0.0.0",
		Port:              8080,
		PublicURL:         "http://localhost:8080",
		AllowedOrigins:    "*",
		MaxPlayers:        internal.MaxPlayersPerRoom,
		RoundStartDelay:   internal.RoundStartDelay,
		CodeAttempts:      internal.MaxRoomCodeAttempts,
		StoreTimeout:      5 * time.Second,
		MessagesPerSecond: 10,
		MessageBurst:      20,
		SendBuffer:        64,
		LogLevel:          "info",
		LogFormat:         "console",
	}
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid public url: %q", c.PublicURL)
		}
	}
	if c.MaxPlayers < 1 {
		return fmt.Errorf("max players must be positive: %d", c.MaxPlayers)
	}
	if c.RoundStartDelay < 0 || c.RoundDuration < 0 {
		return errors.New("round delays cannot be negative")
	}
	if c.CodeAttempts < 1 {
		return fmt.Errorf("code attempts must be positive: %d", c.CodeAttempts)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive: %s", c.StoreTimeout)
	}
	if c.MessagesPerSecond < 0 || c.MessageBurst < 1 || c.SendBuffer < 1 {
		return errors.New("message rate, burst and send buffer must be positive")
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", c.LogFormat)
	}
	return nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Origins splits AllowedOrigins on commas.
func (c Config) Origins() []string {
	raw := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// JoinURL is the link players open to join room code.
func (c Config) JoinURL(code string) string {
	return strings.TrimRight(c.PublicURL, "/") + "/join/" + url.PathEscape(code)
}
