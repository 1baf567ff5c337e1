package config

import "strings"

// ApplyDefaults fills unspecified fields with sensible defaults. Explicit
// values are preserved; zero values are replaced.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyStoreDefaults(&cfg.Store)
	applyVersioningDefaults(&cfg.Versioning)
	applyAuthDefaults(&cfg.Auth)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalized to uppercase for consistent internal representation.
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
}

func applyVersioningDefaults(cfg *VersioningConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}

	if cfg.Type == "none" {
		if cfg.None == nil {
			cfg.None = map[string]any{}
		}
		if _, ok := cfg.None["base_path"]; !ok {
			cfg.None["base_path"] = "./content"
		}
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.AdministratorRole == "" {
		cfg.AdministratorRole = "ADMINISTRATOR"
	}
}
