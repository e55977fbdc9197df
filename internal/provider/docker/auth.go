package docker

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// AuthType selects how registry requests are authenticated.
type AuthType string

const (
	AuthTypeNone  AuthType = "none"
	AuthTypeBasic AuthType = "basic"
	AuthTypeToken AuthType = "token"
)

// Credentials hold optional registry authentication material.
type Credentials struct {
	AuthType AuthType
	Username string
	Password string
	Token    string
}

// authChallenge holds parsed fields from a Www-Authenticate: Bearer
// header, e.g.
// Bearer realm="https://ghcr.io/token",service="ghcr.io",scope="repository:org/image:pull"
type authChallenge struct {
	Realm   string
	Service string
	Scope   string
}

func parseAuthChallenge(header string) (*authChallenge, error) {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, fmt.Errorf("unsupported auth scheme in Www-Authenticate header: %s", header)
	}

	challenge := &authChallenge{}
	for _, part := range splitChallengeParams(header[len("Bearer "):]) {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, "\"")
		switch strings.ToLower(key) {
		case "realm":
			challenge.Realm = value
		case "service":
			challenge.Service = value
		case "scope":
			challenge.Scope = value
		}
	}

	if challenge.Realm == "" {
		return nil, fmt.Errorf("missing realm in Www-Authenticate header")
	}
	return challenge, nil
}

// splitChallengeParams splits comma-separated key=value pairs, respecting
// quoted values.
func splitChallengeParams(s string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case r == ',' && !inQuotes:
			parts = append(parts, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// exchangeForBearerToken calls the token endpoint named by the challenge.
func exchangeForBearerToken(client *http.Client, challenge *authChallenge, creds Credentials, repository string) (string, error) {
	tokenURL, err := url.Parse(challenge.Realm)
	if err != nil {
		return "", fmt.Errorf("invalid token realm %q: %w", challenge.Realm, err)
	}

	query := tokenURL.Query()
	if challenge.Service != "" {
		query.Set("service", challenge.Service)
	}
	scope := challenge.Scope
	if scope == "" {
		scope = fmt.Sprintf("repository:%s:pull", repository)
	}
	query.Set("scope", scope)
	tokenURL.RawQuery = query.Encode()

	req, err := http.NewRequest(http.MethodGet, tokenURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}

	switch creds.AuthType {
	case AuthTypeToken:
		if creds.Token != "" {
			req.SetBasicAuth("token", creds.Token)
		}
	case AuthTypeBasic:
		if creds.Username != "" {
			req.SetBasicAuth(creds.Username, creds.Password)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token exchange failed: HTTP %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	// The response carries the token in "token" or "access_token".
	var tokenResp struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	token := tokenResp.Token
	if token == "" {
		token = tokenResp.AccessToken
	}
	if token == "" {
		return "", fmt.Errorf("no token in token exchange response")
	}
	return token, nil
}

// doAuthenticatedRequest performs a GET with auth challenge handling:
// static credentials first, then a Bearer token exchange on 401.
func doAuthenticatedRequest(client *http.Client, requestURL string, creds Credentials, repository string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	applyStaticAuth(req, creds)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	wwwAuth := resp.Header.Get("Www-Authenticate")
	resp.Body.Close()
	if wwwAuth == "" {
		return nil, fmt.Errorf("received 401 but no Www-Authenticate header")
	}

	log.Debug().Str("www-authenticate", wwwAuth).Msg("received 401 challenge, exchanging for bearer token")

	challenge, err := parseAuthChallenge(wwwAuth)
	if err != nil {
		return nil, fmt.Errorf("failed to parse auth challenge: %w", err)
	}

	token, err := exchangeForBearerToken(client, challenge, creds, repository)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange for bearer token: %w", err)
	}

	retryReq, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry request: %w", err)
	}
	retryReq.Header.Set("Authorization", "Bearer "+token)

	return client.Do(retryReq)
}

func applyStaticAuth(req *http.Request, creds Credentials) {
	switch creds.AuthType {
	case AuthTypeToken:
		if creds.Token != "" {
			req.Header.Set("Authorization", "Bearer "+creds.Token)
		}
	case AuthTypeBasic:
		if creds.Username != "" {
			req.SetBasicAuth(creds.Username, creds.Password)
		}
	}
}

// nextPageURL parses the Link header used by v2 registries:
// Link: </v2/repo/tags/list?n=100&last=tag>; rel="next"
func nextPageURL(linkHeader, registryBaseURL string) string {
	if linkHeader == "" {
		return ""
	}
	for _, part := range strings.Split(linkHeader, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start == -1 || end == -1 || start >= end {
			continue
		}
		link := part[start+1 : end]
		if strings.HasPrefix(link, "/") {
			return strings.TrimSuffix(registryBaseURL, "/") + link
		}
		return link
	}
	return ""
}
