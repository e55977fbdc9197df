// Package providers assembles the registry of built-in providers. All
// registration happens here, explicitly, during process start-up; there
// are no import-time side effects to depend on.
package providers

import (
	"github.com/mxcd/renovate-datasource/internal/configuration"
	"github.com/mxcd/renovate-datasource/internal/provider"
	"github.com/mxcd/renovate-datasource/internal/provider/docker"
	"github.com/mxcd/renovate-datasource/internal/provider/k3s"
	"github.com/mxcd/renovate-datasource/internal/provider/redhat"
)

// NewRegistry registers every built-in provider, applying endpoint and
// credential overrides from the configuration. Settings entries naming
// unknown providers are ignored so a shared config file can carry
// settings for newer binaries.
func NewRegistry(config *configuration.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	redhatSettings := settingsFor(config, redhat.ProviderName)
	if err := registry.Register(redhat.ProviderName, func() provider.Provider {
		p := redhat.New()
		if redhatSettings != nil && redhatSettings.BaseURL != "" {
			p.BaseURL = redhatSettings.BaseURL
		}
		return p
	}); err != nil {
		return nil, err
	}

	k3sSettings := settingsFor(config, k3s.ProviderName)
	if err := registry.Register(k3s.ProviderName, func() provider.Provider {
		p := k3s.New()
		if k3sSettings != nil {
			if k3sSettings.BaseURL != "" {
				p.BaseURL = k3sSettings.BaseURL
			}
			if k3sSettings.Token != "" {
				p.Token = k3sSettings.Token
			}
		}
		return p
	}); err != nil {
		return nil, err
	}

	dockerSettings := settingsFor(config, docker.ProviderName)
	if err := registry.Register(docker.ProviderName, func() provider.Provider {
		p := docker.New()
		if dockerSettings != nil {
			if dockerSettings.BaseURL != "" {
				p.BaseURL = dockerSettings.BaseURL
			}
			p.Credentials = credentialsFrom(dockerSettings)
		}
		return p
	}); err != nil {
		return nil, err
	}

	return registry, nil
}

// ConfiguredOptions returns the default options for a provider from the
// configuration file, merged with (and overridden by) the given options.
func ConfiguredOptions(config *configuration.Config, name string, override provider.Options) provider.Options {
	merged := provider.Options{}
	if settings := settingsFor(config, name); settings != nil {
		for key, value := range settings.Options {
			merged[key] = value
		}
	}
	for key, value := range override {
		merged[key] = value
	}
	return merged
}

func settingsFor(config *configuration.Config, name string) *configuration.ProviderSettings {
	if config == nil {
		return nil
	}
	return config.ProviderSettingsByName(name)
}

func credentialsFrom(settings *configuration.ProviderSettings) docker.Credentials {
	creds := docker.Credentials{
		AuthType: docker.AuthTypeNone,
		Username: settings.Username,
		Password: settings.Password,
		Token:    settings.Token,
	}
	switch settings.AuthType {
	case configuration.AuthTypeBasic:
		creds.AuthType = docker.AuthTypeBasic
	case configuration.AuthTypeToken:
		creds.AuthType = docker.AuthTypeToken
	}
	return creds
}
