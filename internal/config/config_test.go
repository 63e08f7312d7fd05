package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 2, cfg.Runtime.Cores)
	assert.Equal(t, 1000, cfg.Runtime.DefaultPeriod)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Mailbox.Enabled)
}

func TestLoadOrDefaultNeverErrors(t *testing.T) {
	cfg := LoadOrDefault()
	assert.NotNil(t, cfg)
}
