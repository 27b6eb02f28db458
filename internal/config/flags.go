package config

import "flag"

var (
	flagConfig    = flag.String("config", "", "Path to config file")
	flagDebug     = flag.Bool("debug", false, "Enable debug logging")
	flagRoot      = flag.String("root", "", "Asset root directory")
	flagOut       = flag.String("out", "", "Export output directory")
	flagFormat    = flag.String("format", "", "Export image format (webp, tga, png)")
	flagConverter = flag.String("converter", "", "External IWi converter binary")
	flagNoDDS     = flag.Bool("no-dds", false, "Always decode .iwi, ignore converted .dds files")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagRoot != "" {
		cfg.Assets.Root = *flagRoot
	}
	if *flagOut != "" {
		cfg.Export.Dir = *flagOut
	}
	if *flagFormat != "" {
		cfg.Export.Format = *flagFormat
	}
	if *flagConverter != "" {
		cfg.Converter.Path = *flagConverter
	}
	if *flagNoDDS {
		cfg.Assets.PreferDDS = false
	}
}
