package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"go duration", "90s", 90 * time.Second},
		{"plain seconds", "45", 45 * time.Second},
		{"garbage", "soon", time.Minute},
		{"empty", "", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CASEDRAFT_TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getEnvAsDuration("CASEDRAFT_TEST_DURATION", time.Minute))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SESSION_TTL", "30m")

	cfg := Load()

	assert.Empty(t, cfg.App.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, "SESSION_UPDATES", cfg.Session.UpdatesTopic)
	assert.False(t, cfg.IsProduction())
}
