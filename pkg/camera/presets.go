package camera

// Preset names for common configurations
const (
	PresetLow     = "low"
	PresetDefault = "default"
	PresetHD      = "hd"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetLow:     LowConfig(),
		PresetDefault: DefaultConfig(),
		PresetHD:      HDConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetLow, PresetDefault, PresetHD}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// LowConfig returns 640x480, for slow USB cameras and constrained links.
func LowConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	cfg.Quality = 80
	return cfg
}

// HDConfig returns 1080p. Small labels on packaging are easier to read.
func HDConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.Quality = 90
	return cfg
}
