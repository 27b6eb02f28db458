// Package config handles tool configuration loading and management.
package config

import "time"

// Config holds all tool settings.
type Config struct {
	Assets    AssetsConfig    `yaml:"assets"`
	Converter ConverterConfig `yaml:"converter"`
	Export    ExportConfig    `yaml:"export"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AssetsConfig holds game data locations.
type AssetsConfig struct {
	Root      string `yaml:"root"`       // extracted asset root with xmodel/, materials/, images/ ...
	PreferDDS bool   `yaml:"prefer_dds"` // pick a sibling .dds over decoding the .iwi
}

// ConverterConfig holds the optional external texture converter.
type ConverterConfig struct {
	Path    string        `yaml:"path"` // iwi2dds binary, empty to disable
	Timeout time.Duration `yaml:"timeout"`
}

// ExportConfig holds output settings.
type ExportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"` // webp, tga or png
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Assets: AssetsConfig{
			Root:      ".",
			PreferDDS: true,
		},
		Converter: ConverterConfig{
			Timeout: 30 * time.Second,
		},
		Export: ExportConfig{
			Dir:    "export",
			Format: "webp",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
