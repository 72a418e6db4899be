// Package config reads the program configuration from the environment. Values
// in optional .env files are applied first without overriding variables that
// are already set.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Environment keys.
const (
	KeyTitle         = "CUBES_TITLE"
	KeyWidth         = "CUBES_WIDTH"
	KeyHeight        = "CUBES_HEIGHT"
	KeyValidation    = "CUBES_VALIDATION"
	KeyShaderDir     = "CUBES_SHADER_DIR"
	KeyLogLevel      = "CUBES_LOG_LEVEL"
	KeyClearColor    = "CUBES_CLEAR_COLOR"
	KeyFractalDepth  = "CUBES_FRACTAL_DEPTH"
	KeyStatsInterval = "CUBES_STATS_INTERVAL"
)

const maxFractalDepth = 8

// Config is the complete program configuration.
type Config struct {
	Window   WindowConfig
	Renderer RendererConfig
	Scene    SceneConfig
	Log      LogConfig
}

// WindowConfig sizes the initial window. The swapchain follows the window
// afterwards.
type WindowConfig struct {
	Title  string
	Width  int
	Height int
}

type RendererConfig struct {
	// Validation enables the Khronos validation layer and forwards its
	// messages to the log.
	Validation bool
	// ShaderDir holds the compiled cube.vert.spv and cube.frag.spv.
	ShaderDir  string
	ClearColor [4]float32
}

type SceneConfig struct {
	FractalDepth int
}

type LogConfig struct {
	Level logrus.Level
	// StatsInterval is how often frame statistics are logged. Zero disables
	// them.
	StatsInterval time.Duration
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Window: WindowConfig{
			Title:  "cubes",
			Width:  800,
			Height: 600,
		},
		Renderer: RendererConfig{
			ShaderDir:  "shaders",
			ClearColor: [4]float32{0, 0, 0, 1},
		},
		Scene: SceneConfig{
			FractalDepth: 4,
		},
		Log: LogConfig{
			Level:         logrus.InfoLevel,
			StatsInterval: 5 * time.Second,
		},
	}
}

// Load applies every env file that exists, then reads the configuration from
// the environment. Missing files are skipped.
func Load(files ...string) (Config, error) {
	var present []string
	for _, file := range files {
		_, err := os.Stat(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return Config{}, errors.Wrapf(err, "checking %s", file)
		}
		present = append(present, file)
	}

	if len(present) > 0 {
		err := godotenv.Load(present...)
		if err != nil {
			return Config{}, errors.Wrap(err, "loading env files")
		}
	}
	return FromEnv()
}

// FromEnv reads the configuration from the current environment.
func FromEnv() (Config, error) {
	envy.Reload()
	cfg := Default()
	var err error

	if raw := envy.Get(KeyTitle, ""); raw != "" {
		cfg.Window.Title = raw
	}
	cfg.Window.Width, err = intValue(KeyWidth, cfg.Window.Width)
	if err != nil {
		return Config{}, err
	}
	cfg.Window.Height, err = intValue(KeyHeight, cfg.Window.Height)
	if err != nil {
		return Config{}, err
	}

	cfg.Renderer.Validation, err = boolValue(KeyValidation, cfg.Renderer.Validation)
	if err != nil {
		return Config{}, err
	}
	if raw := envy.Get(KeyShaderDir, ""); raw != "" {
		cfg.Renderer.ShaderDir = raw
	}
	if raw := envy.Get(KeyClearColor, ""); raw != "" {
		cfg.Renderer.ClearColor, err = parseColor(raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", KeyClearColor)
		}
	}

	cfg.Scene.FractalDepth, err = intValue(KeyFractalDepth, cfg.Scene.FractalDepth)
	if err != nil {
		return Config{}, err
	}

	if raw := envy.Get(KeyLogLevel, ""); raw != "" {
		cfg.Log.Level, err = logrus.ParseLevel(raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", KeyLogLevel)
		}
	}
	if raw := envy.Get(KeyStatsInterval, ""); raw != "" {
		cfg.Log.StatsInterval, err = time.ParseDuration(raw)
		if err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", KeyStatsInterval)
		}
	}

	return cfg, cfg.Validate()
}

// Validate rejects values the renderer cannot start with.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Newf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Scene.FractalDepth < 0 || c.Scene.FractalDepth > maxFractalDepth {
		return errors.Newf("fractal depth %d outside 0..%d", c.Scene.FractalDepth, maxFractalDepth)
	}
	if c.Log.StatsInterval < 0 {
		return errors.Newf("negative stats interval %s", c.Log.StatsInterval)
	}
	for _, channel := range c.Renderer.ClearColor {
		if channel < 0 || channel > 1 {
			return errors.Newf("clear color %v outside 0..1", c.Renderer.ClearColor)
		}
	}
	return nil
}

// Logger builds the program logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Log.Level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

func intValue(key string, def int) (int, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrapf(err, "parsing %s", key)
	}
	return value, nil
}

func boolValue(key string, def bool) (bool, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return def, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, errors.Wrapf(err, "parsing %s", key)
	}
	return value, nil
}

// parseColor reads "r,g,b" or "r,g,b,a". Alpha defaults to 1.
func parseColor(raw string) ([4]float32, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return [4]float32{}, errors.Newf("expected 3 or 4 components, got %d", len(parts))
	}

	color := [4]float32{0, 0, 0, 1}
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return [4]float32{}, errors.Wrapf(err, "component %d", i)
		}
		color[i] = float32(value)
	}
	return color, nil
}
