package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port zero", func(c *Config) { c.Port = 0 }},
		{"port too high", func(c *Config) { c.Port = 70000 }},
		{"relative public url", func(c *Config) { c.PublicURL = "/join" }},
		{"no players", func(c *Config) { c.MaxPlayers = 0 }},
		{"negative delay", func(c *Config) { c.RoundStartDelay = -time.Second }},
		{"no code attempts", func(c *Config) { c.CodeAttempts = 0 }},
		{"no store timeout", func(c *Config) { c.StoreTimeout = 0 }},
		{"no burst", func(c *Config) { c.MessageBurst = 0 }},
		{"unknown log format", func(c *Config) { c.LogFormat = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestOrigins(t *testing.T) {
	c := Default()
	c.AllowedOrigins = " https://a.example, ,https://b.example "
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Origins())

	c.AllowedOrigins = ""
	assert.Equal(t, []string{"*"}, c.Origins())
}

func TestAddressAndJoinURL(t *testing.T) {
	c := Default()
	c.Bind = "::1"
	c.Port = 9000
	assert.Equal(t, "[::1]:9000", c.Address())

	c.PublicURL = "https://winenight.app/"
	assert.Equal(t, "https://winenight.app/join/WN-123456", c.JoinURL("WN-123456"))
}
