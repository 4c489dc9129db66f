package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/omnitenant/pkg/config"
)

// Each test declares its own config type: Load caches one parsed value
// per type for the process lifetime, so sharing a type across tests
// would leak state between them.

func TestLoad(t *testing.T) {
	t.Run("parses env tags with defaults", func(t *testing.T) {
		type testCfg struct {
			Host string `env:"LOADER_TEST_HOST" envDefault:"localhost"`
			Port int    `env:"LOADER_TEST_PORT" envDefault:"5432"`
		}
		t.Setenv("LOADER_TEST_HOST", "db.internal")

		var cfg testCfg
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "db.internal", cfg.Host)
		assert.Equal(t, 5432, cfg.Port)
	})

	t.Run("missing required variable", func(t *testing.T) {
		type requiredCfg struct {
			Secret string `env:"LOADER_TEST_REQUIRED,required"`
		}

		var cfg requiredCfg
		err := config.Load(&cfg)
		require.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("second load returns the cached snapshot", func(t *testing.T) {
		type cachedCfg struct {
			Value string `env:"LOADER_TEST_CACHED" envDefault:"first"`
		}
		t.Setenv("LOADER_TEST_CACHED", "first")

		var a cachedCfg
		require.NoError(t, config.Load(&a))

		// A later change to the environment is not observed.
		t.Setenv("LOADER_TEST_CACHED", "second")
		var b cachedCfg
		require.NoError(t, config.Load(&b))
		assert.Equal(t, "first", b.Value)
	})

	t.Run("nil pointer", func(t *testing.T) {
		type nilCfg struct{}
		var p *nilCfg
		require.ErrorIs(t, config.Load(p), config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on missing required variable", func(t *testing.T) {
		type mustCfg struct {
			Secret string `env:"LOADER_TEST_MUST_REQUIRED,required"`
		}

		assert.Panics(t, func() {
			var cfg mustCfg
			config.MustLoad(&cfg)
		})
	})

	t.Run("returns on success", func(t *testing.T) {
		type mustOKCfg struct {
			Value string `env:"LOADER_TEST_MUST_OK" envDefault:"ok"`
		}

		var cfg mustOKCfg
		assert.NotPanics(t, func() { config.MustLoad(&cfg) })
		assert.Equal(t, "ok", cfg.Value)
	})
}
