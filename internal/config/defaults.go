package config

// Default configuration values.
const (
	DefaultMaxPoints   = 1_000_000
	DefaultFormat      = "xlsx"
	DefaultSheet       = "Sheet1"
	DefaultFilePattern = "lens-grid-{time}"
	DefaultTimeLayout  = "20060102-150405"
	DefaultPort        = 8765
	DefaultHost        = "127.0.0.1"
)

// DefaultGridConfig returns a GridConfig with default values. A zero
// MaxPoints set explicitly in a config file disables the limit, so it is
// not treated as unset.
func DefaultGridConfig() *GridConfig {
	return &GridConfig{MaxPoints: DefaultMaxPoints}
}

// ApplyExportDefaults applies default values to an ExportConfig.
func ApplyExportDefaults(e *ExportConfig) {
	if e == nil {
		return
	}
	if e.Dir == "" {
		e.Dir = "."
	}
	if e.Format == "" {
		e.Format = DefaultFormat
	}
	if e.Sheet == "" {
		e.Sheet = DefaultSheet
	}
	if e.FilePattern == "" {
		e.FilePattern = DefaultFilePattern
	}
}

// ApplyServeDefaults applies default values to a ServeConfig.
func ApplyServeDefaults(s *ServeConfig) {
	if s == nil {
		return
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	if s.Host == "" {
		s.Host = DefaultHost
	}
}
