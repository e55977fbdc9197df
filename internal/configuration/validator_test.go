package configuration

import "testing"

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		config     *Config
		wantValid  bool
		wantErrors int
	}{
		{
			name:      "empty config is valid",
			config:    &Config{},
			wantValid: true,
		},
		{
			name: "valid providers",
			config: &Config{Providers: []*ProviderSettings{
				{Name: "docker", AuthType: AuthTypeBasic, Username: "user", Password: "pass"},
				{Name: "k3s", AuthType: AuthTypeToken, Token: "tok"},
				{Name: "redhat-catalog"},
			}},
			wantValid: true,
		},
		{
			name: "duplicate names",
			config: &Config{Providers: []*ProviderSettings{
				{Name: "docker"},
				{Name: "docker"},
			}},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name: "empty name",
			config: &Config{Providers: []*ProviderSettings{
				{Name: ""},
			}},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name: "basic auth without username",
			config: &Config{Providers: []*ProviderSettings{
				{Name: "docker", AuthType: AuthTypeBasic},
			}},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name: "token auth without token",
			config: &Config{Providers: []*ProviderSettings{
				{Name: "k3s", AuthType: AuthTypeToken},
			}},
			wantValid:  false,
			wantErrors: 1,
		},
		{
			name: "unknown auth type",
			config: &Config{Providers: []*ProviderSettings{
				{Name: "docker", AuthType: "oauth"},
			}},
			wantValid:  false,
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ValidateConfiguration(tt.config)
			if result.Valid != tt.wantValid {
				t.Errorf("expected valid=%v, got %v (errors: %v)", tt.wantValid, result.Valid, result.Errors)
			}
			if !tt.wantValid && len(result.Errors) != tt.wantErrors {
				t.Errorf("expected %d errors, got %d: %v", tt.wantErrors, len(result.Errors), result.Errors)
			}
		})
	}
}
