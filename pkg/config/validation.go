package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus custom rules
// that cannot be expressed declaratively.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs cross-field validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Store.Type == "badger" {
		path, _ := cfg.Store.Badger["path"].(string)
		if path == "" {
			return fmt.Errorf("store.badger: path is required when store type is badger")
		}
	}

	if cfg.Versioning.Type == "s3" {
		bucket, _ := cfg.Versioning.S3["bucket"].(string)
		if bucket == "" {
			return fmt.Errorf("versioning.s3: bucket is required when versioning type is s3")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return fmt.Errorf("configuration validation failed: %w", err)
}
