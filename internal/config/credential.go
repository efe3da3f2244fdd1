package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

// Environment variables the credential loader reads.
const (
	// EnvSessionToken carries the pre-obtained session token.
	EnvSessionToken = "THREADHARVEST_SESSION_TOKEN"

	// EnvClientID carries an OAuth-style client identifier. It only
	// selects the intermediate pacing class; no token exchange happens.
	EnvClientID = "THREADHARVEST_CLIENT_ID"

	// sessionTokenFile is the token file name under the XDG config dir.
	sessionTokenFile = "session_token"
)

// Credential is the opaque authentication material the crawler carries.
// Both fields empty means the crawler operates unauthenticated, at the
// slowest pacing class.
type Credential struct {
	// SessionToken is sent as a cookie on every request.
	SessionToken string

	// ClientID marks the OAuth-style credential class.
	ClientID string
}

// Authenticated reports whether any credential is present.
func (c Credential) Authenticated() bool {
	return c.SessionToken != "" || c.ClientID != ""
}

// LoadCredential resolves the credential from, in order: a .env file in
// the working directory (loaded without clobbering real environment
// variables), the process environment, and a token file under the XDG
// config directory. Absence is not an error — the crawler degrades to
// unauthenticated pacing.
func LoadCredential() Credential {
	// Best effort; a missing .env simply means the environment rules.
	_ = godotenv.Load()

	cred := Credential{
		SessionToken: os.Getenv(EnvSessionToken),
		ClientID:     os.Getenv(EnvClientID),
	}
	if cred.SessionToken != "" {
		return cred
	}

	if path, err := xdg.SearchConfigFile(filepath.Join(AppName, sessionTokenFile)); err == nil {
		if data, err := os.ReadFile(path); err == nil { //nolint:gosec // XDG-resolved path
			cred.SessionToken = strings.TrimSpace(string(data))
		}
	}
	return cred
}
