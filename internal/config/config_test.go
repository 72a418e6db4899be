package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/sirupsen/logrus"

	"github.com/vkngwrapper/cubes/internal/config"
)

var allKeys = []string{
	config.KeyTitle,
	config.KeyWidth,
	config.KeyHeight,
	config.KeyValidation,
	config.KeyShaderDir,
	config.KeyLogLevel,
	config.KeyClearColor,
	config.KeyFractalDepth,
	config.KeyStatsInterval,
}

// unsetAll removes every key for the duration of the test.
func unsetAll(c *qt.C) {
	for _, key := range allKeys {
		c.Unsetenv(key)
	}
}

func TestDefaults(t *testing.T) {
	c := qt.New(t)
	unsetAll(c)

	cfg, err := config.Load(filepath.Join(c.TempDir(), "missing.env"))
	c.Assert(err, qt.IsNil)

	c.Assert(cfg, qt.DeepEquals, config.Default())
	c.Assert(cfg.Window.Width, qt.Equals, 800)
	c.Assert(cfg.Window.Height, qt.Equals, 600)
	c.Assert(cfg.Log.Level, qt.Equals, logrus.InfoLevel)
}

func TestEnvironmentOverrides(t *testing.T) {
	c := qt.New(t)
	unsetAll(c)
	c.Setenv(config.KeyTitle, "spinning")
	c.Setenv(config.KeyWidth, "1024")
	c.Setenv(config.KeyHeight, " 768 ")
	c.Setenv(config.KeyValidation, "true")
	c.Setenv(config.KeyShaderDir, "/opt/shaders")
	c.Setenv(config.KeyLogLevel, "debug")
	c.Setenv(config.KeyClearColor, "0.1, 0.2, 0.3")
	c.Setenv(config.KeyFractalDepth, "6")
	c.Setenv(config.KeyStatsInterval, "1s")

	cfg, err := config.FromEnv()
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.Window, qt.Equals, config.WindowConfig{Title: "spinning", Width: 1024, Height: 768})
	c.Assert(cfg.Renderer.Validation, qt.IsTrue)
	c.Assert(cfg.Renderer.ShaderDir, qt.Equals, "/opt/shaders")
	c.Assert(cfg.Renderer.ClearColor, qt.Equals, [4]float32{0.1, 0.2, 0.3, 1})
	c.Assert(cfg.Scene.FractalDepth, qt.Equals, 6)
	c.Assert(cfg.Log.Level, qt.Equals, logrus.DebugLevel)
	c.Assert(cfg.Log.StatsInterval, qt.Equals, time.Second)
}

func TestEnvFile(t *testing.T) {
	c := qt.New(t)
	unsetAll(c)
	c.Setenv(config.KeyHeight, "480")

	file := filepath.Join(c.TempDir(), ".env")
	err := os.WriteFile(file, []byte("CUBES_WIDTH=640\nCUBES_HEIGHT=999\nCUBES_FRACTAL_DEPTH=2\n"), 0o600)
	c.Assert(err, qt.IsNil)

	cfg, err := config.Load(file)
	c.Assert(err, qt.IsNil)

	c.Assert(cfg.Window.Width, qt.Equals, 640)
	// Variables already in the environment win over the file.
	c.Assert(cfg.Window.Height, qt.Equals, 480)
	c.Assert(cfg.Scene.FractalDepth, qt.Equals, 2)
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		message string
	}{
		{config.KeyWidth, "wide", `parsing CUBES_WIDTH: .*`},
		{config.KeyHeight, "0", `window size 800x0 must be positive`},
		{config.KeyValidation, "maybe", `parsing CUBES_VALIDATION: .*`},
		{config.KeyLogLevel, "loud", `parsing CUBES_LOG_LEVEL: .*`},
		{config.KeyClearColor, "1,0", `parsing CUBES_CLEAR_COLOR: expected 3 or 4 components, got 2`},
		{config.KeyClearColor, "1,0,2", `clear color .* outside 0..1`},
		{config.KeyFractalDepth, "9", `fractal depth 9 outside 0..8`},
		{config.KeyStatsInterval, "-1s", `negative stats interval -1s`},
	}

	c := qt.New(t)
	for _, test := range tests {
		test := test
		c.Run(test.key+"="+test.value, func(c *qt.C) {
			unsetAll(c)
			c.Setenv(test.key, test.value)

			_, err := config.FromEnv()
			c.Assert(err, qt.ErrorMatches, test.message)
		})
	}
}

func TestLogger(t *testing.T) {
	c := qt.New(t)
	cfg := config.Default()
	cfg.Log.Level = logrus.WarnLevel

	logger := cfg.Logger()

	c.Assert(logger.GetLevel(), qt.Equals, logrus.WarnLevel)
	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	c.Assert(ok, qt.IsTrue)
	c.Assert(formatter.FullTimestamp, qt.IsTrue)
}
