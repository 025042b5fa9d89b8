// Package keyring stores carelog secrets in the OS keyring.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/carelog/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is stored under the key.
	ErrNotFound = errors.New("credentials not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available.
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Secret names one keyring entry and the environment variable that
// overrides it.
type Secret struct {
	User   string
	EnvVar string
	Label  string
}

var (
	ConnectionString = Secret{User: constants.DefaultKeyringUser, EnvVar: "CARELOG_DB_CONNECTION", Label: "database connection string"}
	APIToken         = Secret{User: constants.APITokenKeyringUser, EnvVar: "CARELOG_API_TOKEN", Label: "API token"}
)

// Secrets lists every entry carelog may store.
var Secrets = []Secret{ConnectionString, APIToken}

// Lookup finds a secret by keyring user or a short alias.
func Lookup(name string) (Secret, bool) {
	switch strings.ToLower(name) {
	case "db", "connection", ConnectionString.User:
		return ConnectionString, true
	case "token", "api", APIToken.User:
		return APIToken, true
	}
	return Secret{}, false
}

func Get(s Secret) (string, error) {
	v, err := keyring.Get(constants.AppName, s.User)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func Set(s Secret, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", s.Label)
	}
	if err := keyring.Set(constants.AppName, s.User, value); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", s.Label, err)
	}
	return nil
}

func Delete(s Secret) error {
	if err := keyring.Delete(constants.AppName, s.User); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", s.Label, err)
	}
	return nil
}

// Resolve prefers the environment variable and falls back to the keyring.
// A missing secret resolves to "" without error.
func Resolve(s Secret) (string, error) {
	if v := os.Getenv(s.EnvVar); v != "" {
		return v, nil
	}
	v, err := Get(s)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

// IsAvailable is a best-effort probe of the OS keyring.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
