package logging

import "fmt"

// Output encodings.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level to emit: debug, info, warn or error.
	Level string
	// Format selects the output encoding: json or console.
	Format string
}

// NewDefaultConfig returns the production defaults (info level, JSON).
func NewDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatJSON,
	}
}

// Validate checks the config for unsupported values.
func (c *Config) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn or error, got %q", c.Level)
	}
	switch c.Format {
	case FormatJSON, FormatConsole:
	default:
		return fmt.Errorf("format must be %s or %s, got %q", FormatJSON, FormatConsole, c.Format)
	}
	return nil
}
