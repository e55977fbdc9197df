package configuration

// Config is the optional configuration file for the datasource
// generator: a global output directory plus per-provider settings keyed
// to registered provider names.
type Config struct {
	OutputDir string              `yaml:"outputDir,omitempty"`
	Providers []*ProviderSettings `yaml:"providers,omitempty"`
}

type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeBasic AuthType = "basic"
	AuthTypeToken AuthType = "token"
)

// ProviderSettings carries credentials, endpoint overrides, and default
// options for one provider.
type ProviderSettings struct {
	Name     string            `yaml:"name"`
	BaseURL  string            `yaml:"baseUrl,omitempty"`
	AuthType AuthType          `yaml:"authType,omitempty"`
	Username string            `yaml:"username,omitempty"`
	Password string            `yaml:"password,omitempty"`
	Token    string            `yaml:"token,omitempty"`
	Options  map[string]string `yaml:"options,omitempty"`
}

// ProviderSettingsByName returns the settings entry for name, or nil.
func (c *Config) ProviderSettingsByName(name string) *ProviderSettings {
	for _, settings := range c.Providers {
		if settings.Name == name {
			return settings
		}
	}
	return nil
}
