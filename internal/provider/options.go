package provider

import (
	"fmt"
	"strconv"
)

// Options is the bag of provider-specific named parameters for one
// invocation. Providers validate the keys they recognize and may reject
// the rest.
type Options map[string]string

// String returns the value for key, or fallback when the key is absent.
func (o Options) String(key, fallback string) string {
	if value, ok := o[key]; ok {
		return value
	}
	return fallback
}

// Bool returns the boolean value for key, or fallback when the key is
// absent. Unparseable values count as false.
func (o Options) Bool(key string, fallback bool) bool {
	value, ok := o[key]
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}
	return parsed
}

// Int returns the integer value for key, or fallback when the key is
// absent or unparseable.
func (o Options) Int(key string, fallback int) int {
	value, ok := o[key]
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// Validate rejects option keys outside the allowed set.
func (o Options) Validate(allowed ...string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = true
	}
	for key := range o {
		if !allowedSet[key] {
			return fmt.Errorf("unrecognized option %q", key)
		}
	}
	return nil
}
