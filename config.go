package spritebatch

// Config holds batch configuration that cannot change after New.
type Config struct {
	// PageWidth and PageHeight are the atlas page dimensions in pixels.
	// Default: 1024x1024.
	PageWidth  int
	PageHeight int

	// Padding is the transparent gutter kept between packed images so
	// bilinear sampling never reaches a neighbor. Default: 1.
	Padding int

	// MaxPages limits the number of atlas pages. Zero means unlimited.
	MaxPages int

	// DecayFlushes releases a placement once its sprite has not been drawn
	// for this many flushes. Zero disables decay.
	DecayFlushes int

	// Debug prints per-flush stats and per-sprite failures to stderr.
	Debug bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		PageWidth:  1024,
		PageHeight: 1024,
		Padding:    1,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.PageWidth < 64 {
		return &ConfigError{Field: "PageWidth", Reason: "must be at least 64"}
	}
	if c.PageWidth > 8192 {
		return &ConfigError{Field: "PageWidth", Reason: "must be at most 8192"}
	}
	if c.PageHeight < 64 {
		return &ConfigError{Field: "PageHeight", Reason: "must be at least 64"}
	}
	if c.PageHeight > 8192 {
		return &ConfigError{Field: "PageHeight", Reason: "must be at most 8192"}
	}
	if c.Padding < 0 {
		return &ConfigError{Field: "Padding", Reason: "must be non-negative"}
	}
	if c.Padding > 16 {
		return &ConfigError{Field: "Padding", Reason: "must be at most 16"}
	}
	if c.MaxPages < 0 {
		return &ConfigError{Field: "MaxPages", Reason: "must be non-negative"}
	}
	if c.DecayFlushes < 0 {
		return &ConfigError{Field: "DecayFlushes", Reason: "must be non-negative"}
	}
	return nil
}
