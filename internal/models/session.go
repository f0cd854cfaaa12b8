package models

import "time"

// Credential is one stored login for the remote system. The file format is
// an operator-maintained artifact; format stability matters here, security
// does not (see the credential store boundary).
type Credential struct {
	Username   string `toml:"username" json:"username"`
	Password   string `toml:"password" json:"password"`
	IsLastUsed bool   `toml:"is_last_used" json:"is_last_used"`
}

// CredentialFile is the on-disk shape of the credential store
type CredentialFile struct {
	Credentials []Credential `toml:"credentials"`
}

// SessionCookie is one browser cookie in the serialized session artifact.
// The artifact is engine-specific and opaque to everything but the session
// manager.
type SessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// SessionArtifact is the serialized browser session written after login
type SessionArtifact struct {
	BaseURL  string          `json:"base_url"`
	Username string          `json:"username"`
	Cookies  []SessionCookie `json:"cookies"`
	SavedAt  time.Time       `json:"saved_at"`
}

// SessionContext is the explicit per-run session state handed to every
// component that needs it. Constructed once per run; never reached through
// globals.
type SessionContext struct {
	Organization string    `json:"organization"`
	BaseURL      string    `json:"base_url"`
	Username     string    `json:"username"`
	FromArtifact bool      `json:"from_artifact"` // true when login was skipped via a restored session
	StartedAt    time.Time `json:"started_at"`
}
