package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn")

	l.Info("hidden")
	l.Warn("shown", "guild", "42")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "guild=42")
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "chatty")

	l.Debug("debug line")
	l.Info("info line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestForPrefixesComponent(t *testing.T) {
	var buf bytes.Buffer
	l := For(New(&buf, "info"), "Player")

	l.Info("ready")

	assert.Contains(t, buf.String(), "Player")
}

func TestForNilParentDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		For(nil, "x").Info("nothing")
	})
}
