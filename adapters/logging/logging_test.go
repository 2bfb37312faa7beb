package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/subroutine/adapters/logging"
	"github.com/artpar/subroutine/config"
	"github.com/artpar/subroutine/ports"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(config.LoggingConfig{Level: "bogus", Format: "console"}, &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "hidden")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output should not be JSON")
}

func TestObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(config.LoggingConfig{Level: "debug"}, &buf)
	obs := logging.NewObserver(logger)
	ctx := context.Background()

	obs.Observe(ctx, ports.Observation{Op: "SignupOp", Phase: ports.PhaseValidate, Outcome: ports.OutcomeSuccess, Duration: time.Millisecond})
	obs.Observe(ctx, ports.Observation{Op: "SignupOp", Phase: ports.PhasePerform, Outcome: ports.OutcomeFailure})
	obs.Observe(ctx, ports.Observation{Op: "SignupOp", Phase: ports.PhaseSubmit, Outcome: ports.OutcomeError, Err: errors.New("boom")})

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	require.Len(t, entries, 3)

	assert.Equal(t, "debug", entries[0]["level"])
	assert.Equal(t, "validate", entries[0]["phase"])
	assert.Equal(t, "SignupOp", entries[0]["op"])

	assert.Equal(t, "warn", entries[1]["level"])
	assert.Equal(t, "failure", entries[1]["outcome"])

	assert.Equal(t, "error", entries[2]["level"])
	assert.Equal(t, "boom", entries[2]["error"])
}

func TestNewReloadable(t *testing.T) {
	var buf bytes.Buffer
	logger, level := logging.NewReloadable(config.LoggingConfig{Level: "warn"}, &buf)
	assert.Equal(t, zerolog.WarnLevel, level.Get())

	logger.Info().Msg("hidden")
	level.Set("debug")
	logger.Debug().Msg("shown")
	level.Set("nonsense")
	logger.Debug().Msg("hidden again")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"message":"shown"`)
	assert.Equal(t, zerolog.InfoLevel, level.Get())
}
