// Package config loads go-cubism runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/teslashibe/go-cubism/pkg/motion"
)

// Config holds application configuration.
type Config struct {
	Log    LogConfig
	Model  ModelConfig
	Motion MotionConfig
	Sound  SoundConfig
	Render RenderConfig
	Server ServerConfig
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string
}

// ModelConfig locates the model settings file.
type ModelConfig struct {
	// Path is a settings file on disk or an http(s) URL.
	Path string
}

// MotionConfig holds motion manager settings.
type MotionConfig struct {
	Preload            string
	IdleDelay          time.Duration `mapstructure:"idle_delay"`
	PreserveExpression bool          `mapstructure:"preserve_expression"`
	Sync               bool
}

// SoundConfig holds audio settings.
type SoundConfig struct {
	Enabled    bool
	Volume     float64
	SampleRate int           `mapstructure:"sample_rate"`
	Buffer     time.Duration // speaker buffer length
	Headless   bool          // play without an audio device
}

// RenderConfig holds frame loop settings.
type RenderConfig struct {
	FPS int
}

// ServerConfig holds control server settings.
type ServerConfig struct {
	Port   string
	Static string
}

// Load reads configuration from file and env. Env var overrides use prefix
// CUBISM_, e.g. CUBISM_MOTION_PRELOAD=all.
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("model.path", "")
	v.SetDefault("motion.preload", string(motion.PreloadIdle))
	v.SetDefault("motion.idle_delay", "0s")
	v.SetDefault("motion.preserve_expression", true)
	v.SetDefault("motion.sync", true)
	v.SetDefault("sound.enabled", true)
	v.SetDefault("sound.volume", 0.5)
	v.SetDefault("sound.sample_rate", 44100)
	v.SetDefault("sound.buffer", "100ms")
	v.SetDefault("sound.headless", false)
	v.SetDefault("render.fps", 60)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.static", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("CUBISM_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "cubism"))
		v.AddConfigPath(".")
		v.SetConfigName("cubism")
	}

	v.SetEnvPrefix("CUBISM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// an explicit file must exist; the search path is optional
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if _, err := motion.ParsePreload(c.Motion.Preload); err != nil {
		return fmt.Errorf("config: motion.preload: %w", err)
	}
	if c.Motion.IdleDelay < 0 {
		return fmt.Errorf("config: motion.idle_delay must not be negative")
	}
	if c.Sound.Volume < 0 || c.Sound.Volume > 1 {
		return fmt.Errorf("config: sound.volume %v out of [0, 1]", c.Sound.Volume)
	}
	if c.Sound.SampleRate <= 0 {
		return fmt.Errorf("config: sound.sample_rate must be positive")
	}
	if c.Render.FPS <= 0 || c.Render.FPS > 240 {
		return fmt.Errorf("config: render.fps %d out of (0, 240]", c.Render.FPS)
	}
	return nil
}

// MotionConfig converts the motion and sound sections into a
// motion.Config. The idle group is left to the runtime.
func (c Config) MotionConfig() motion.Config {
	mc := motion.DefaultConfig()
	mc.IdleGroup = ""
	if p, err := motion.ParsePreload(c.Motion.Preload); err == nil {
		mc.Preload = p
	}
	mc.IdleDelay = c.Motion.IdleDelay
	mc.PreserveExpressionOnMotion = c.Motion.PreserveExpression
	mc.MotionSync = c.Motion.Sync
	mc.SoundEnabled = c.Sound.Enabled
	return mc
}
