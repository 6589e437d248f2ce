package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	eventbus "github.com/hanpama/docexec/internal/eventbus"
	events "github.com/hanpama/docexec/internal/events"
	reqid "github.com/hanpama/docexec/internal/reqid"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       string
	}{
		{"info", "json", ""},
		{"debug", "console", ""},
		{"warn", "", ""},
		{"loud", "json", "log level"},
		{"info", "xml", `log format "xml" is not json or console`},
	}
	for _, tt := range tests {
		l, err := New(tt.level, tt.format)
		if tt.wantErr != "" {
			assert.ErrorContains(t, err, tt.wantErr)
			continue
		}
		require.NoError(t, err)
		assert.NotNil(t, l)
	}

	l, err := New("warn", "json")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestSubscribe(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	core, logs := observer.New(zapcore.DebugLevel)
	defer Subscribe(zap.New(core))()

	ctx, rid := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.GraphQLFinish{Operation: events.Operation{Name: "home", Type: "query"}, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.GraphQLFinish{
		Operation:  events.Operation{Name: "home", Type: "query", Hash: 0xbeef},
		Errors:     []error{errors.New("boom")},
		ErrorCodes: []string{"FIELD_RESOLUTION_ERROR"},
	})

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "operation finished", entries[0].Message)
	assert.Equal(t, rid, entries[0].ContextMap()["request_id"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, int64(1), entries[1].ContextMap()["errors"])
	assert.Equal(t, []any{"FIELD_RESOLUTION_ERROR"}, entries[1].ContextMap()["codes"])
	assert.Equal(t, "beef", entries[1].ContextMap()["document"])
}
