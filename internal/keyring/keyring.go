package keyring

import (
	"errors"
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const serviceName = "agencycheck"

// Get retrieves a secret from the OS keychain.
func Get(name string) (string, error) {
	v, err := zkr.Get(serviceName, name)
	if err != nil {
		return "", fmt.Errorf("keychain get %s: %w", name, err)
	}
	return v, nil
}

// Set stores a secret in the OS keychain.
func Set(name, value string) error {
	if err := zkr.Set(serviceName, name, value); err != nil {
		return fmt.Errorf("keychain set %s: %w", name, err)
	}
	return nil
}

// Delete removes a secret from the OS keychain.
func Delete(name string) error {
	if err := zkr.Delete(serviceName, name); err != nil {
		return fmt.Errorf("keychain delete %s: %w", name, err)
	}
	return nil
}

// IsNotFound reports whether err means the secret is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, zkr.ErrNotFound)
}

// Available returns true if the OS keychain is functional.
// Returns false if AGENCYCHECK_KEYRING_DISABLED=1 is set (opt-in for headless/CI/Docker).
// Otherwise tests the keychain with a test write/read/delete cycle.
func Available() bool {
	if os.Getenv("AGENCYCHECK_KEYRING_DISABLED") == "1" {
		return false
	}
	testService := "agencycheck-keyring-check"
	testAccount := "check"
	if err := zkr.Set(testService, testAccount, "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(testService, testAccount)
	return true
}
