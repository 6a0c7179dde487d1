// Package config handles viewer and tool configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds all settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Loader   LoaderConfig   `yaml:"loader"`
	Build    BuildConfig    `yaml:"build"`
	Data     DataConfig     `yaml:"data"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DataConfig holds data paths.
type DataConfig struct {
	Folder string `yaml:"folder"` // octree folder with meta.json, octree.hierarchy and Octants/
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Fullscreen bool    `yaml:"fullscreen"`
	VSync      bool    `yaml:"vsync"`
	FPSLimit   int     `yaml:"fps_limit"`
	PointSize  float32 `yaml:"point_size"`
	ShowFPS    bool    `yaml:"show_fps"`
}

// LoaderConfig holds out-of-core loader settings.
type LoaderConfig struct {
	PointThreshold      int           `yaml:"point_threshold"`
	MinProjSizeModifier float64       `yaml:"min_proj_size_modifier"`
	InitCamPos          [3]float64    `yaml:"init_cam_pos"`
	ShowOctants         bool          `yaml:"show_octants"`
	UpdateInterval      time.Duration `yaml:"update_interval"`
	MaxPending          int           `yaml:"max_pending"`
}

// BuildConfig holds octree build settings.
type BuildConfig struct {
	MaxPointsInBucket int    `yaml:"max_points_in_bucket"`
	MaxLevel          int    `yaml:"max_level"`
	PointType         string `yaml:"point_type"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
			PointSize:  2,
		},
		Loader: LoaderConfig{
			PointThreshold:      1000000,
			MinProjSizeModifier: 0.1,
			ShowOctants:         false,
			UpdateInterval:      33 * time.Millisecond,
			MaxPending:          5,
		},
		Build: BuildConfig{
			MaxPointsInBucket: 1000,
			MaxLevel:          24,
			PointType:         "Pos64Col32",
		},
		Data: DataConfig{
			Folder: "",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Graphics.Width <= 0 || c.Graphics.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Graphics.Width, c.Graphics.Height)
	case c.Graphics.PointSize <= 0:
		return fmt.Errorf("%w: point_size %v must be positive", ErrInvalid, c.Graphics.PointSize)
	case c.Loader.PointThreshold < 0:
		return fmt.Errorf("%w: point_threshold %d is negative", ErrInvalid, c.Loader.PointThreshold)
	case c.Loader.MinProjSizeModifier < 0:
		return fmt.Errorf("%w: min_proj_size_modifier %v is negative", ErrInvalid, c.Loader.MinProjSizeModifier)
	case c.Loader.UpdateInterval <= 0:
		return fmt.Errorf("%w: update_interval %v must be positive", ErrInvalid, c.Loader.UpdateInterval)
	case c.Loader.MaxPending <= 0:
		return fmt.Errorf("%w: max_pending %d must be positive", ErrInvalid, c.Loader.MaxPending)
	case c.Build.MaxPointsInBucket <= 0:
		return fmt.Errorf("%w: max_points_in_bucket %d must be positive", ErrInvalid, c.Build.MaxPointsInBucket)
	case c.Build.MaxLevel < 0:
		return fmt.Errorf("%w: max_level %d is negative", ErrInvalid, c.Build.MaxLevel)
	}
	return nil
}
