package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/carelog/internal/constants"
)

var (
	userConfigDirFunc = os.UserConfigDir
	findProcessFunc   = ps.FindProcess
)

// TraySink posts triggers to the desktop tray app's local webhook. The
// tray app advertises its port and secret in a lockfile.
type TraySink struct {
	http *resty.Client
}

type webhookPayload struct {
	Text       string `json:"text"`
	DurationMs uint32 `json:"duration_ms"`
}

func NewTraySink() *TraySink {
	return &TraySink{http: resty.New().SetTimeout(constants.RemoteTimeout)}
}

func (n *TraySink) Send(ctx context.Context, t Trigger) error {
	dir, err := TrayAppConfigDir()
	if err != nil {
		return err
	}

	port, secret, err := findAndValidateTrayProcess(filepath.Join(dir, constants.NotifierLockfileName))
	if err != nil {
		return err
	}

	return n.post(ctx, "http://127.0.0.1:"+port, secret, webhookPayload{
		Text:       t.Payload,
		DurationMs: constants.NotificationDurationMs,
	})
}

func (n *TraySink) Close() error { return nil }

// TrayAppConfigDir returns the configuration directory used by the tray app.
func TrayAppConfigDir() (string, error) {
	configDir, err := userConfigDirFunc()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}

	trayConfigDir := filepath.Join(configDir, constants.TrayAppIdentifier)

	// settings.json may point the lockfile somewhere else
	data, err := os.ReadFile(filepath.Join(trayConfigDir, "settings.json"))
	if err == nil {
		var store struct {
			Settings struct {
				LockfileDir *string `json:"lockfile_dir"`
			} `json:"settings"`
		}
		if json.Unmarshal(data, &store) == nil && store.Settings.LockfileDir != nil && *store.Settings.LockfileDir != "" {
			return *store.Settings.LockfileDir, nil
		}
	}

	return trayConfigDir, nil
}

func findAndValidateTrayProcess(lockfilePath string) (string, string, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return "", "", errors.New(constants.TrayExecutable + " is not running")
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return "", "", errors.New("lockfile is malformed")
	}

	port := strings.TrimSpace(parts[0])
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return "", "", errors.New("invalid port number in lockfile")
	}
	if portNum < 1 || portNum > 65535 {
		return "", "", fmt.Errorf("port number %d is outside valid range (1-65535)", portNum)
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", "", errors.New("invalid process ID in lockfile")
	}
	secret := strings.TrimSpace(parts[2])
	if secret == "" {
		return "", "", errors.New("secret in lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return "", "", errors.New(constants.TrayExecutable + " process not running")
	}
	if !strings.HasPrefix(process.Executable(), constants.TrayExecutable) {
		return "", "", fmt.Errorf("process with PID %d is not %s (is %s)", pid, constants.TrayExecutable, process.Executable())
	}

	return port, secret, nil
}

func (n *TraySink) post(ctx context.Context, url, secret string, payload webhookPayload) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader(constants.TraySecretHeader, secret).
		SetBody(payload).
		Post(url)
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusOK {
		return nil
	}
	return fmt.Errorf("notification failed with status %d: %s", resp.StatusCode(), resp.String())
}
