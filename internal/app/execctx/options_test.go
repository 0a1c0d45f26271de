package execctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-eager-context/internal/adapters/runtime/fake"
	"github.com/jsamuelsen/go-eager-context/internal/domain"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.False(t, s.Async)
	assert.Equal(t, domain.PlacementSilent, s.DevicePlacement)
	assert.Empty(t, s.Config)
}

func TestNewOptions(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantCode domain.Code
		wantMsg  string
		setCalls int64
	}{
		{
			name:     "defaults skip session config",
			settings: DefaultSettings(),
			wantCode: domain.CodeOK,
		},
		{
			name:     "session config applied",
			settings: Settings{DevicePlacement: domain.PlacementExplicit, Config: []byte{0x0a, 0x00}},
			wantCode: domain.CodeOK,
			setCalls: 1,
		},
		{
			name:     "malformed session config",
			settings: Settings{DevicePlacement: domain.PlacementSilent, Config: []byte{0xff}},
			wantCode: domain.CodeInvalidArgument,
			wantMsg:  "malformed session config",
			setCalls: 1,
		},
		{
			name:     "invalid placement",
			settings: Settings{DevicePlacement: domain.DevicePlacementPolicy(42)},
			wantCode: domain.CodeInvalidArgument,
			wantMsg:  "invalid device placement policy placement(42)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := fake.New()

			opts, err := NewOptions(context.Background(), rt, tt.settings)

			assert.Equal(t, tt.setCalls, rt.Calls.SetConfig.Load())

			if tt.wantCode != domain.CodeOK {
				require.Error(t, err)
				assert.Nil(t, opts)
				assert.Equal(t, tt.wantCode, domain.FailureCode(err))
				assert.Equal(t, tt.wantMsg, err.Error())
				assert.Zero(t, rt.LiveOptions(), "rejected options must be released")
				assert.Zero(t, rt.LiveStatuses())

				return
			}

			require.NoError(t, err)
			assert.False(t, opts.Native().IsNull())

			opts.Close()
			opts.Close()

			assert.True(t, opts.Native().IsNull())
			assert.Zero(t, rt.LiveOptions())
			assert.Equal(t, int64(1), rt.Calls.DeleteContextOptions.Load())
		})
	}
}

func TestNewOptions_MissingRuntime(t *testing.T) {
	_, err := NewOptions(context.Background(), nil, DefaultSettings())
	require.ErrorIs(t, err, domain.ErrRuntimeMissing)
}

func TestOptions_NilReceiver(t *testing.T) {
	var o *Options

	assert.True(t, o.Native().IsNull())
	assert.NotPanics(t, o.Close)
}
