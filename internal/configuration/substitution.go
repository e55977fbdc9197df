package configuration

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// SubstitutionContext holds state for variable substitution, including a
// cache of decrypted SOPS files.
type SubstitutionContext struct {
	sopsCache map[string]map[string]interface{}
}

func NewSubstitutionContext() *SubstitutionContext {
	return &SubstitutionContext{
		sopsCache: make(map[string]map[string]interface{}),
	}
}

var placeholderPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// SubstituteVariables replaces placeholders in the input string:
// - ${VAR_NAME} for environment variables
// - ${SOPS[path/to/file.yml].path.to.value} for SOPS encrypted files
func (ctx *SubstitutionContext) SubstituteVariables(input string) (string, error) {
	result := input
	for _, match := range placeholderPattern.FindAllStringSubmatch(input, -1) {
		if len(match) < 2 {
			continue
		}
		placeholder := match[0]
		expression := match[1]

		var value string
		var err error
		if strings.HasPrefix(expression, "SOPS[") {
			value, err = ctx.resolveSOPSReference(expression)
			if err != nil {
				return "", fmt.Errorf("failed to resolve SOPS reference %s: %w", placeholder, err)
			}
		} else {
			value = os.Getenv(expression)
			if value == "" {
				return "", fmt.Errorf("environment variable %s is not set", expression)
			}
		}

		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result, nil
}

// resolveSOPSReference resolves a reference like SOPS[file.yml].path.to.value
func (ctx *SubstitutionContext) resolveSOPSReference(expression string) (string, error) {
	closeBracketIdx := strings.Index(expression, "]")
	if closeBracketIdx == -1 {
		return "", fmt.Errorf("invalid SOPS reference format (missing ]): %s", expression)
	}

	filePath := expression[5:closeBracketIdx]
	yamlPath := ""
	if closeBracketIdx+1 < len(expression) {
		if expression[closeBracketIdx+1] != '.' {
			return "", fmt.Errorf("invalid SOPS reference format (expected . after ]): %s", expression)
		}
		yamlPath = expression[closeBracketIdx+2:]
	}
	if yamlPath == "" {
		return "", fmt.Errorf("SOPS reference must include a YAML path: %s", expression)
	}

	data, err := ctx.loadSOPSFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to load SOPS file %s: %w", filePath, err)
	}

	value, err := GetYAMLValue(data, yamlPath)
	if err != nil {
		return "", fmt.Errorf("failed to access path %s in SOPS file %s: %w", yamlPath, filePath, err)
	}

	return fmt.Sprintf("%v", value), nil
}

func (ctx *SubstitutionContext) loadSOPSFile(filePath string) (map[string]interface{}, error) {
	if data, ok := ctx.sopsCache[filePath]; ok {
		return data, nil
	}

	data, err := DecryptSOPSFile(filePath)
	if err != nil {
		return nil, err
	}
	ctx.sopsCache[filePath] = data
	return data, nil
}

// SubstituteInConfig substitutes variables in every provider-settings
// credential field.
func (ctx *SubstitutionContext) SubstituteInConfig(config *Config) error {
	for _, settings := range config.Providers {
		if err := ctx.substituteInProviderSettings(settings); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *SubstitutionContext) substituteInProviderSettings(settings *ProviderSettings) error {
	var err error

	if settings.BaseURL != "" {
		settings.BaseURL, err = ctx.SubstituteVariables(settings.BaseURL)
		if err != nil {
			return fmt.Errorf("failed to substitute baseUrl in provider %s: %w", settings.Name, err)
		}
	}
	if settings.Username != "" {
		settings.Username, err = ctx.SubstituteVariables(settings.Username)
		if err != nil {
			return fmt.Errorf("failed to substitute username in provider %s: %w", settings.Name, err)
		}
	}
	if settings.Password != "" {
		settings.Password, err = ctx.SubstituteVariables(settings.Password)
		if err != nil {
			return fmt.Errorf("failed to substitute password in provider %s: %w", settings.Name, err)
		}
	}
	if settings.Token != "" {
		settings.Token, err = ctx.SubstituteVariables(settings.Token)
		if err != nil {
			return fmt.Errorf("failed to substitute token in provider %s: %w", settings.Name, err)
		}
	}

	return nil
}

// GetYAMLValue retrieves a value from a nested YAML structure using dot
// notation, e.g. "credentials.token".
func GetYAMLValue(data map[string]interface{}, path string) (interface{}, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}

	parts := strings.Split(path, ".")
	current := interface{}(data)

	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("invalid path: empty segment at position %d", i)
		}

		switch v := current.(type) {
		case map[string]interface{}:
			value, ok := v[part]
			if !ok {
				return nil, fmt.Errorf("path not found: %s (missing key '%s')", path, part)
			}
			current = value
		case map[interface{}]interface{}:
			value, ok := v[part]
			if !ok {
				return nil, fmt.Errorf("path not found: %s (missing key '%s')", path, part)
			}
			current = value
		default:
			return nil, fmt.Errorf("path not found: %s (cannot traverse into non-map at '%s')", path, part)
		}
	}

	return current, nil
}
