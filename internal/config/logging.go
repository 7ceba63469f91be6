package config

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	Format     string          `yaml:"format"`               // console, json
	Dir        string          `yaml:"dir"`                  // debug log directory
	DebugMode  bool            `yaml:"debug_mode"`           // also write a JSON file under Dir
	Categories map[string]bool `yaml:"categories,omitempty"` // per-category toggles
}
