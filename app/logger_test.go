package app

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLogLevelToZero(t *testing.T) {
	cases := map[Level]zerolog.Level{
		TRACE:     zerolog.TraceLevel,
		DEBUG:     zerolog.DebugLevel,
		INFO:      zerolog.InfoLevel,
		WARN:      zerolog.WarnLevel,
		ERROR:     zerolog.ErrorLevel,
		PANIC:     zerolog.PanicLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		require.Equal(t, want, logLevelToZero(in), in)
	}
}

func TestNewZeroLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newZeroLogger(&buf, WARN, false)

	l.Info().Msg("hidden")
	l.Warn().Str("run_id", "r1").Msg("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"run_id":"r1"`)
	require.Contains(t, buf.String(), `"level":"warn"`)

	buf.Reset()
	l = newZeroLogger(&buf, INFO, true)
	l.Info().Msg("pretty")
	require.Contains(t, buf.String(), "pretty")
	require.NotContains(t, buf.String(), `"message"`)
}
