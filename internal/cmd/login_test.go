package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/aula-chat/aula-go/internal/config"
	"github.com/aula-chat/aula-go/internal/secrets"
)

type fakeStore struct {
	secrets map[string]string
	err     error
}

func (f *fakeStore) Get(account string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	s, ok := f.secrets[account]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) Set(account, secret string) error {
	if f.err != nil {
		return f.err
	}
	if f.secrets == nil {
		f.secrets = make(map[string]string)
	}
	f.secrets[account] = secret
	return nil
}

func (f *fakeStore) Delete(account string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.secrets, account)
	return nil
}

func (f *fakeStore) IsSupported() bool { return f.err == nil }

func TestResolveToken(t *testing.T) {
	const base = "https://aula.example"
	store := &fakeStore{secrets: map[string]string{secrets.TokenAccount(base): "saved"}}

	c := config.Default()
	c.Server.BaseURI = base

	if got := resolveToken(store, c); got != "saved" {
		t.Errorf("resolveToken() = %q, want the saved token", got)
	}

	c.Server.Token = "configured"
	if got := resolveToken(store, c); got != "configured" {
		t.Errorf("resolveToken() = %q, want the configured token", got)
	}

	c.Server.Token = ""
	if got := resolveToken(secrets.NoopStore{}, c); got != "" {
		t.Errorf("resolveToken() without store = %q, want empty", got)
	}
	if got := resolveToken(&fakeStore{err: errors.New("locked")}, c); got != "" {
		t.Errorf("resolveToken() with failing store = %q, want empty", got)
	}
}

func TestStoreToken(t *testing.T) {
	const base = "https://aula.example"

	var out bytes.Buffer
	store := &fakeStore{}
	if err := storeToken(&out, store, base, "t-1"); err != nil {
		t.Fatalf("storeToken() error = %v", err)
	}
	if got := store.secrets[secrets.TokenAccount(base)]; got != "t-1" {
		t.Errorf("stored token = %q, want %q", got, "t-1")
	}
	if !strings.Contains(out.String(), "token saved") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	if err := storeToken(&out, secrets.NoopStore{}, base, "t-2"); err != nil {
		t.Fatalf("storeToken() without store error = %v", err)
	}
	if !strings.Contains(out.String(), "AULA_TOKEN=t-2") {
		t.Errorf("output = %q, want the token printed", out.String())
	}

	if err := storeToken(&out, &fakeStore{err: errors.New("locked")}, base, "t-3"); err == nil {
		t.Error("storeToken() with failing store should fail")
	}
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"secret\n", "secret", false},
		{"secret\r\n", "secret", false},
		{"no newline", "no newline", false},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := readLine(strings.NewReader(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("readLine(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("readLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
