package reqid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx, id := NewContext(context.Background())
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)

	_, ok = FromContext(context.Background())
	assert.False(t, ok, "unexpected id in empty context")
}

func TestWithID(t *testing.T) {
	const given = "6f1c1a4e-3b7d-4c55-9a43-2f0f5c2d9e10"
	ctx, id := WithID(context.Background(), given)
	assert.Equal(t, given, id)
	got, _ := FromContext(ctx)
	assert.Equal(t, given, got)

	for _, bad := range []string{"", "not-a-uuid"} {
		_, id := WithID(context.Background(), bad)
		assert.NotEqual(t, bad, id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	}
}
