package example

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/protocol"
)

func TestPlugin_Metadata(t *testing.T) {
	meta := New().Metadata()

	assert.Equal(t, "example.simple", meta.ID)
	assert.Equal(t, "Example Simple Plugin", meta.Name)
	assert.Equal(t, "0.1", meta.Version)
	assert.Equal(t, "1.0", meta.APIVersion)
}

func TestPlugin_Schema(t *testing.T) {
	schema := New().ConfigSchema()

	require.Len(t, schema, 1)
	assert.Equal(t, "dummy", schema[0].Name)
	assert.Equal(t, protocol.FieldInteger, schema[0].Type)
	assert.Equal(t, 0, schema[0].Default)
	assert.False(t, schema[0].Required)
	assert.NoError(t, schema.Check())
}

func TestPlugin_Validate(t *testing.T) {
	p := New()

	assert.NoError(t, p.Validate(protocol.Config{}))
	assert.NoError(t, p.Validate(protocol.Config{"dummy": 7}))
	assert.Error(t, p.Validate(protocol.Config{"dummy": "seven"}))
	assert.Error(t, p.Validate(protocol.Config{"other": 1}))
}

func TestPlugin_CreateAppliesDefaults(t *testing.T) {
	inst, err := New().Create(protocol.Config{})
	require.NoError(t, err)

	assert.Equal(t, Settings{Dummy: 0}, inst.(*Instance).Settings())

	inst, err = New().Create(protocol.Config{"dummy": 3})
	require.NoError(t, err)
	assert.Equal(t, Settings{Dummy: 3}, inst.(*Instance).Settings())
}

func TestInstance_Lifecycle(t *testing.T) {
	// Given: a fresh instance
	ctx := context.Background()
	inst, err := New().Create(protocol.Config{})
	require.NoError(t, err)

	// When: polling before connect
	_, err = inst.Poll(ctx)

	// Then: not connected
	assert.Equal(t, scopeerr.ErrCodeNotConnected, scopeerr.GetCode(err))

	// When: connected
	require.NoError(t, inst.Connect(ctx))
	sample, err := inst.Poll(ctx)

	// Then: the constant reading comes back
	require.NoError(t, err)
	assert.Equal(t, protocol.Sample{"value": 42}, sample)

	// When: disconnected
	require.NoError(t, inst.Disconnect(ctx))
	_, err = inst.Poll(ctx)
	assert.Equal(t, scopeerr.ErrCodeNotConnected, scopeerr.GetCode(err))
}

func TestInstance_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inst, err := New().Create(nil)
	require.NoError(t, err)

	assert.ErrorIs(t, inst.Connect(ctx), context.Canceled)
}
