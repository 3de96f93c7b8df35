package config

// Log controls the structured logger.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Headers     string  `toml:"Headers"`
	Traces      bool    `toml:"Traces"`
	Metrics     bool    `toml:"Metrics"`
	SampleRatio float64 `toml:"SampleRatio"`
}

// Auth configures bearer token verification. The token subject is the
// caller identity.
type Auth struct {
	JWTSecret string `toml:"JWTSecret"`
	Issuer    string `toml:"Issuer"`
	Audience  string `toml:"Audience"`
}

// RateLimit bounds API requests per caller.
type RateLimit struct {
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
}

// Jobs holds the job ledger creation bounds. MinBudget is a decimal string
// in base units.
type Jobs struct {
	MinBudget          string `toml:"MinBudget"`
	MaxDurationSeconds int64  `toml:"MaxDurationSeconds"`
}
