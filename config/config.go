package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// JWTSecretEnv overrides Auth.JWTSecret when set.
const JWTSecretEnv = "GIG_JWT_SECRET"

type Config struct {
	ListenAddress string    `toml:"ListenAddress"`
	DataDir       string    `toml:"DataDir"`
	GenesisFile   string    `toml:"GenesisFile"`
	AuditDSN      string    `toml:"AuditDSN"`
	Environment   string    `toml:"Environment"`
	Log           Log       `toml:"log"`
	Telemetry     Telemetry `toml:"telemetry"`
	Auth          Auth      `toml:"auth"`
	RateLimit     RateLimit `toml:"rate_limit"`
	Jobs          Jobs      `toml:"jobs"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by the default configuration, which is written to path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err = createDefault(path)
		if err != nil {
			return nil, err
		}
		applyEnv(cfg)
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		ListenAddress: ":8080",
		DataDir:       "./gig-data",
		GenesisFile:   "",
		AuditDSN:      "",
		Environment:   "local",
		Log: Log{
			Level: "info",
		},
		Telemetry: Telemetry{
			Endpoint: "localhost:4318",
			Insecure: true,
		},
		Auth: Auth{
			Issuer:   "gigchain",
			Audience: "gigchain-api",
		},
		RateLimit: RateLimit{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Jobs: Jobs{
			MinBudget:          "100",
			MaxDurationSeconds: 365 * 24 * 60 * 60,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = def.ListenAddress
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = def.DataDir
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = def.Log.Level
	}
	if strings.TrimSpace(cfg.Auth.Issuer) == "" {
		cfg.Auth.Issuer = def.Auth.Issuer
	}
	if strings.TrimSpace(cfg.Auth.Audience) == "" {
		cfg.Auth.Audience = def.Auth.Audience
	}
	if cfg.RateLimit.RequestsPerSecond == 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit = def.RateLimit
	}
	if strings.TrimSpace(cfg.Jobs.MinBudget) == "" {
		cfg.Jobs.MinBudget = def.Jobs.MinBudget
	}
	if cfg.Jobs.MaxDurationSeconds == 0 {
		cfg.Jobs.MaxDurationSeconds = def.Jobs.MaxDurationSeconds
	}
}

func applyEnv(cfg *Config) {
	if secret := strings.TrimSpace(os.Getenv(JWTSecretEnv)); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
