package system

import (
	"errors"
	"fmt"
	"strings"

	"github.com/julianstephens/carelog/internal/cli"
	"github.com/julianstephens/carelog/internal/keyring"
	"github.com/julianstephens/carelog/internal/storage/postgres"
)

func lookupSecret(name string) (keyring.Secret, error) {
	s, ok := keyring.Lookup(name)
	if !ok {
		return keyring.Secret{}, fmt.Errorf("unknown secret %q (use db or token)", name)
	}
	return s, nil
}

// KeyringSetCmd stores a secret in the OS keyring
type KeyringSetCmd struct {
	Secret string `arg:"" help:"Secret to store (db|token)."`
	Value  string `arg:"" help:"Connection string or API token."`
}

func (cmd *KeyringSetCmd) Run(ctx *cli.Context) error {
	s, err := lookupSecret(cmd.Secret)
	if err != nil {
		return err
	}

	if s == keyring.ConnectionString {
		if cli.DetectBackend(cmd.Value) != cli.BackendPostgres {
			return errors.New("connection string must be a valid PostgreSQL connection string")
		}
		if _, err := postgres.ValidateConnString(cmd.Value); err != nil {
			if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return fmt.Errorf("invalid connection string: %w", err)
			}
			fmt.Println("⚠️  Warning: Connection string contains embedded credentials.")
			fmt.Println("   It will be stored as-is in the encrypted OS keyring.")
		}
	}

	if err := keyring.Set(s, cmd.Value); err != nil {
		return err
	}
	fmt.Printf("✓ %s stored successfully in OS keyring\n", capitalize(s.Label))
	return nil
}

// KeyringGetCmd prints a stored secret, masked
type KeyringGetCmd struct {
	Secret string `arg:"" help:"Secret to read (db|token)."`
}

func (cmd *KeyringGetCmd) Run(ctx *cli.Context) error {
	s, err := lookupSecret(cmd.Secret)
	if err != nil {
		return err
	}
	v, err := keyring.Get(s)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring. Use 'carelog keyring set' to store one", s.Label)
		}
		return err
	}

	if s == keyring.ConnectionString {
		fmt.Println(maskPassword(v))
	} else {
		fmt.Println(maskToken(v))
	}
	return nil
}

// KeyringDeleteCmd removes a secret from the OS keyring
type KeyringDeleteCmd struct {
	Secret string `arg:"" help:"Secret to delete (db|token)."`
}

func (cmd *KeyringDeleteCmd) Run(ctx *cli.Context) error {
	s, err := lookupSecret(cmd.Secret)
	if err != nil {
		return err
	}
	if err := keyring.Delete(s); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("no %s found in keyring", s.Label)
		}
		return err
	}
	fmt.Printf("✓ %s deleted from OS keyring\n", capitalize(s.Label))
	return nil
}

// KeyringStatusCmd checks the availability of the OS keyring
type KeyringStatusCmd struct{}

func (cmd *KeyringStatusCmd) Run(ctx *cli.Context) error {
	if !keyring.IsAvailable() {
		fmt.Println("❌ OS keyring is not available on this system")
		return errors.New("keyring unavailable")
	}
	fmt.Println("✓ OS keyring is available")
	for _, s := range keyring.Secrets {
		if _, err := keyring.Get(s); err == nil {
			fmt.Printf("✓ %s is stored in keyring\n", capitalize(s.Label))
		} else if errors.Is(err, keyring.ErrNotFound) {
			fmt.Printf("ℹ No %s stored in keyring\n", s.Label)
		}
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// maskPassword masks passwords in connection strings for display
func maskPassword(connStr string) string {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		idx := strings.Index(connStr, "://")
		remaining := connStr[idx+3:]
		if atIdx := strings.LastIndex(remaining, "@"); atIdx != -1 {
			userInfo := remaining[:atIdx]
			if colonIdx := strings.Index(userInfo, ":"); colonIdx != -1 {
				return connStr[:idx+3] + userInfo[:colonIdx] + ":****" + connStr[idx+3+atIdx:]
			}
		}
		return connStr
	}

	parts := strings.Fields(connStr)
	for i, part := range parts {
		if strings.HasPrefix(part, "password=") {
			parts[i] = "password=****"
		}
	}
	return strings.Join(parts, " ")
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}
