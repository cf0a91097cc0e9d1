// Package credential resolves secrets (Supabase keys, demo passwords).
// Environment variables win; the OS keychain is the fallback.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/neboloop/agencycheck/internal/keyring"
)

// Well-known credential names. They match the app's .env.local keys.
const (
	SupabaseURL        = "NEXT_PUBLIC_SUPABASE_URL"
	SupabaseAnonKey    = "NEXT_PUBLIC_SUPABASE_ANON_KEY"
	SupabaseServiceKey = "SUPABASE_SERVICE_ROLE_KEY"
	SupabaseDBURL      = "SUPABASE_DB_URL"
)

// ErrNoCredential is returned when no source has the secret.
var ErrNoCredential = errors.New("credential not found")

// Source is where a secret was found.
type Source string

const (
	SourceEnv     Source = "env"
	SourceKeyring Source = "keyring"
)

// Resolver looks secrets up. The zero value reads env then keychain.
type Resolver struct {
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
	// NoKeyring skips the OS keychain.
	NoKeyring bool
}

// Lookup returns the secret for name and where it came from.
func (r Resolver) Lookup(name string) (string, Source, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(name)); v != "" {
		return v, SourceEnv, nil
	}
	if !r.NoKeyring && os.Getenv("AGENCYCHECK_KEYRING_DISABLED") != "1" {
		v, err := keyring.Get(name)
		if err == nil && v != "" {
			return v, SourceKeyring, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s (set it in .env.local or run `agencycheck creds set %s`)", ErrNoCredential, name, name)
}

// Get returns the secret for name.
func (r Resolver) Get(name string) (string, error) {
	v, _, err := r.Lookup(name)
	return v, err
}

// First returns the first name that resolves.
func (r Resolver) First(names ...string) (string, error) {
	for _, name := range names {
		if v, _, err := r.Lookup(name); err == nil {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoCredential, strings.Join(names, ", "))
}

// Store saves a secret in the OS keychain.
func Store(name, value string) error {
	if value == "" {
		return fmt.Errorf("refusing to store empty value for %s", name)
	}
	return keyring.Set(name, value)
}

// Remove deletes a secret from the OS keychain. Missing secrets are not an error.
func Remove(name string) error {
	if err := keyring.Delete(name); err != nil && !keyring.IsNotFound(err) {
		return err
	}
	return nil
}

// KeyRole returns the "role" claim of a Supabase API key. New-style opaque
// keys report "service_role" for sb_secret_ and "anon" for sb_publishable_.
// The signature is not verified; only the project can do that.
func KeyRole(key string) (string, error) {
	switch {
	case strings.HasPrefix(key, "sb_secret_"):
		return "service_role", nil
	case strings.HasPrefix(key, "sb_publishable_"):
		return "anon", nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return "", fmt.Errorf("api key is neither a JWT nor an sb_ key: %w", err)
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return "", fmt.Errorf("api key has no role claim")
	}
	return role, nil
}

// RequireServiceRole fails unless key carries the service_role role.
func RequireServiceRole(key string) error {
	role, err := KeyRole(key)
	if err != nil {
		return err
	}
	if role != "service_role" {
		return fmt.Errorf("%s has role %q, want service_role", SupabaseServiceKey, role)
	}
	return nil
}
