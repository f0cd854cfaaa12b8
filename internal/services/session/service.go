// -----------------------------------------------------------------------
// Last Modified: Wednesday, 26th August 2026 11:52:07 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/ordermirror/internal/common"
	"github.com/ternarybob/ordermirror/internal/interfaces"
	"github.com/ternarybob/ordermirror/internal/models"
	"github.com/ternarybob/ordermirror/internal/services/extractor"
)

// ErrAuthRejected is fatal: the remote system refused the credentials and
// nothing downstream can succeed.
var ErrAuthRejected = errors.New("authentication rejected by remote system")

// ErrNoCredentials means the credential store has no usable entry
var ErrNoCredentials = errors.New("no credentials available")

// Service authenticates against the remote system and persists the browser
// session so re-runs skip interactive login.
type Service struct {
	config    common.SessionConfig
	selectors extractor.Selectors
	loginURL  string
	listURL   string
	logger    arbor.ILogger
}

// NewService creates a session manager
func NewService(config common.SessionConfig, selectors extractor.Selectors, loginURL, listURL string, logger arbor.ILogger) *Service {
	return &Service{
		config:    config,
		selectors: selectors,
		loginURL:  loginURL,
		listURL:   listURL,
		logger:    logger,
	}
}

// LoadCredential reads the operator-selected entry from the credential
// store, or the last-used entry when no username is configured.
func (s *Service) LoadCredential() (*models.Credential, error) {
	data, err := os.ReadFile(s.config.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential store %s: %w", s.config.CredentialsFile, err)
	}

	var file models.CredentialFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse credential store: %w", err)
	}
	if len(file.Credentials) == 0 {
		return nil, ErrNoCredentials
	}

	if s.config.Username != "" {
		for i := range file.Credentials {
			if file.Credentials[i].Username == s.config.Username {
				return &file.Credentials[i], nil
			}
		}
		return nil, fmt.Errorf("%w: no entry for username %q", ErrNoCredentials, s.config.Username)
	}

	for i := range file.Credentials {
		if file.Credentials[i].IsLastUsed {
			return &file.Credentials[i], nil
		}
	}
	return &file.Credentials[0], nil
}

// MarkLastUsed writes the is_last_used flag back to the credential store
// after a successful login
func (s *Service) MarkLastUsed(username string) error {
	data, err := os.ReadFile(s.config.CredentialsFile)
	if err != nil {
		return fmt.Errorf("failed to read credential store: %w", err)
	}
	var file models.CredentialFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credential store: %w", err)
	}

	for i := range file.Credentials {
		file.Credentials[i].IsLastUsed = file.Credentials[i].Username == username
	}

	out, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to serialize credential store: %w", err)
	}
	if err := os.WriteFile(s.config.CredentialsFile, out, 0600); err != nil {
		return fmt.Errorf("failed to write credential store: %w", err)
	}
	return nil
}

// IsAuthenticated probes the current page: an absent login form means the
// session is already valid.
func (s *Service) IsAuthenticated(ctx context.Context, page interfaces.Page) bool {
	present, err := page.Exists(ctx, s.selectors.LoginForm)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Login form probe failed, assuming unauthenticated")
		return false
	}
	return !present
}

// Authenticate establishes a session: restore the persisted artifact when
// it is still valid, otherwise perform an interactive login. The returned
// SessionContext is the explicit per-run session state.
func (s *Service) Authenticate(ctx context.Context, page interfaces.SessionPage, organization, baseURL string) (*models.SessionContext, error) {
	sessionCtx := &models.SessionContext{
		Organization: organization,
		BaseURL:      baseURL,
		StartedAt:    time.Now(),
	}

	// Try the persisted session first so re-runs skip interactive login.
	if restored, username := s.restore(ctx, page); restored {
		if err := page.Navigate(ctx, s.listURL); err == nil && s.IsAuthenticated(ctx, page) {
			sessionCtx.Username = username
			sessionCtx.FromArtifact = true
			s.logger.Info().Str("username", username).Msg("Session restored from artifact, login skipped")
			return sessionCtx, nil
		}
		s.logger.Info().Msg("Persisted session no longer valid, logging in")
	}

	cred, err := s.LoadCredential()
	if err != nil {
		return nil, err
	}

	if err := s.login(ctx, page, cred); err != nil {
		return nil, err
	}
	sessionCtx.Username = cred.Username

	if err := s.Persist(ctx, page, cred.Username); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist session artifact")
	}
	if err := s.MarkLastUsed(cred.Username); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to update credential store")
	}

	return sessionCtx, nil
}

// login drives the interactive login form. An absent form is treated as
// already-authenticated rather than an error.
func (s *Service) login(ctx context.Context, page interfaces.Page, cred *models.Credential) error {
	if err := page.Navigate(ctx, s.loginURL); err != nil {
		return fmt.Errorf("failed to reach login page: %w", err)
	}

	present, err := page.Exists(ctx, s.selectors.LoginForm)
	if err != nil {
		return fmt.Errorf("login form probe failed: %w", err)
	}
	if !present {
		s.logger.Info().Msg("Login form absent, already authenticated")
		return nil
	}

	if err := page.SendKeys(ctx, s.selectors.LoginUser, cred.Username); err != nil {
		return fmt.Errorf("failed to fill username: %w", err)
	}
	if err := page.SendKeys(ctx, s.selectors.LoginPass, cred.Password); err != nil {
		return fmt.Errorf("failed to fill password: %w", err)
	}
	if err := page.Click(ctx, s.selectors.LoginSubmit); err != nil {
		return fmt.Errorf("failed to submit login: %w", err)
	}
	if err := page.WaitNetworkIdle(ctx, 15*time.Second); err != nil {
		s.logger.Debug().Err(err).Msg("Post-login settle ended early")
	}

	// The form surviving submission means the credentials were rejected.
	stillPresent, err := page.Exists(ctx, s.selectors.LoginForm)
	if err != nil {
		return fmt.Errorf("post-login probe failed: %w", err)
	}
	if stillPresent {
		return fmt.Errorf("%w: login form still present after submit for %q", ErrAuthRejected, cred.Username)
	}

	s.logger.Info().Str("username", cred.Username).Msg("Authenticated")
	return nil
}

// Persist writes the serialized browser session to local storage
func (s *Service) Persist(ctx context.Context, page interfaces.SessionPage, username string) error {
	cookies, err := page.ExportCookies(ctx)
	if err != nil {
		return err
	}

	// Record where the session actually landed; a redirect target restores
	// better than the configured list URL.
	location, locErr := page.CurrentURL(ctx)
	if locErr != nil || location == "" {
		location = s.listURL
	}

	artifact := models.SessionArtifact{
		BaseURL:  location,
		Username: username,
		Cookies:  cookies,
		SavedAt:  time.Now(),
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.config.ArtifactPath), 0700); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(s.config.ArtifactPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session artifact: %w", err)
	}

	s.logger.Debug().
		Int("cookies", len(cookies)).
		Str("path", s.config.ArtifactPath).
		Msg("Session artifact persisted")
	return nil
}

// restore replays a previously persisted session into the browser. Returns
// whether cookies were installed and the artifact's username.
func (s *Service) restore(ctx context.Context, page interfaces.SessionPage) (bool, string) {
	data, err := os.ReadFile(s.config.ArtifactPath)
	if err != nil {
		return false, ""
	}

	var artifact models.SessionArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		s.logger.Warn().Err(err).Msg("Session artifact unreadable, ignoring")
		return false, ""
	}
	if len(artifact.Cookies) == 0 {
		return false, ""
	}

	if err := page.ImportCookies(ctx, artifact.Cookies); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to replay session cookies")
		return false, ""
	}

	return true, artifact.Username
}
