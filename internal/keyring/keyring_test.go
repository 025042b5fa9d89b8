package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestSetAndGet(t *testing.T) {
	gokeyring.MockInit()

	for _, s := range Secrets {
		if err := Set(s, "value-for-"+s.User); err != nil {
			t.Fatalf("Set(%s) failed: %v", s.User, err)
		}
	}
	for _, s := range Secrets {
		got, err := Get(s)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", s.User, err)
		}
		if got != "value-for-"+s.User {
			t.Errorf("Get(%s) = %q", s.User, got)
		}
	}
}

func TestSetEmpty(t *testing.T) {
	gokeyring.MockInit()
	if err := Set(APIToken, "  "); err == nil {
		t.Error("Set with blank value should fail")
	}
}

func TestGetAndDeleteNotFound(t *testing.T) {
	gokeyring.MockInit()

	if _, err := Get(ConnectionString); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get err = %v, want ErrNotFound", err)
	}
	if err := Delete(ConnectionString); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	gokeyring.MockInit()

	if err := Set(ConnectionString, "postgres://carelog@localhost/carelog"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := Delete(ConnectionString); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := Get(ConnectionString); !errors.Is(err, ErrNotFound) {
		t.Errorf("after Delete, Get err = %v", err)
	}
}

func TestResolvePrefersEnv(t *testing.T) {
	gokeyring.MockInit()

	got, err := Resolve(APIToken)
	if err != nil || got != "" {
		t.Errorf("Resolve with nothing stored = %q, %v", got, err)
	}

	if err := Set(APIToken, "from-keyring"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, _ := Resolve(APIToken); got != "from-keyring" {
		t.Errorf("Resolve = %q, want keyring value", got)
	}

	t.Setenv(APIToken.EnvVar, "from-env")
	if got, _ := Resolve(APIToken); got != "from-env" {
		t.Errorf("Resolve = %q, want env value", got)
	}
}

func TestLookup(t *testing.T) {
	for name, want := range map[string]Secret{"db": ConnectionString, "TOKEN": APIToken, "api-token": APIToken} {
		got, ok := Lookup(name)
		if !ok || got != want {
			t.Errorf("Lookup(%q) = %+v, %v", name, got, ok)
		}
	}
	if _, ok := Lookup("ssh"); ok {
		t.Error("Lookup(ssh) succeeded")
	}
}

func TestIsAvailableWithMock(t *testing.T) {
	gokeyring.MockInit()
	if !IsAvailable() {
		t.Error("mock keyring reported unavailable")
	}
}
