package configuration

import "fmt"

// ValidationError describes one configuration problem.
type ValidationError struct {
	Field   string `json:"field" yaml:"field"`
	Message string `json:"message" yaml:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult collects all problems found in one configuration.
type ValidationResult struct {
	Valid  bool               `json:"valid" yaml:"valid"`
	Errors []*ValidationError `json:"errors" yaml:"errors"`
}

func (r *ValidationResult) addError(field, message string) {
	r.Valid = false
	r.Errors = append(r.Errors, &ValidationError{Field: field, Message: message})
}

// ValidateConfiguration checks provider settings for duplicate names,
// unknown auth types, and missing credentials.
func ValidateConfiguration(config *Config) *ValidationResult {
	result := &ValidationResult{Valid: true}

	seen := make(map[string]bool)
	for i, settings := range config.Providers {
		field := fmt.Sprintf("providers[%d]", i)

		if settings.Name == "" {
			result.addError(field+".name", "provider name must not be empty")
			continue
		}
		if seen[settings.Name] {
			result.addError(field+".name", fmt.Sprintf("duplicate provider settings name: %s", settings.Name))
		}
		seen[settings.Name] = true

		switch settings.AuthType {
		case "", AuthTypeNone:
			// no credentials required
		case AuthTypeBasic:
			if settings.Username == "" {
				result.addError(field+".username", "authType 'basic' requires a username")
			}
		case AuthTypeToken:
			if settings.Token == "" {
				result.addError(field+".token", "authType 'token' requires a token")
			}
		default:
			result.addError(field+".authType", fmt.Sprintf("unknown authType: %s", settings.AuthType))
		}
	}

	return result
}
