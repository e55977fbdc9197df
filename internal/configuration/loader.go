package configuration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfiguration reads and parses the configuration file at the given
// path and performs environment variable and SOPS substitution on
// credential fields.
func LoadConfiguration(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration YAML: %w", err)
	}

	ctx := NewSubstitutionContext()
	if err := ctx.SubstituteInConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to substitute variables: %w", err)
	}

	return &config, nil
}
