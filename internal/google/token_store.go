package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
)

// TokenStore persists the most recently obtained credential.
type TokenStore interface {
	// Load returns the stored credential. It returns ErrNoToken when nothing is
	// stored and an error wrapping ErrCorruptToken when the data cannot be parsed.
	Load(ctx context.Context) (*Credential, error)

	// Save replaces the stored credential.
	Save(ctx context.Context, cred *Credential) error

	// Clear removes the stored credential. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// storedToken is the on-disk representation. Field names follow Google's
// "authorized user" JSON so token files can be shared with other Google tooling.
type storedToken struct {
	Token        string     `json:"token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	TokenURI     string     `json:"token_uri,omitempty"`
	ClientID     string     `json:"client_id,omitempty"`
	ClientSecret string     `json:"client_secret,omitempty"`
	Scopes       []string   `json:"scopes"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

func encodeCredential(cred *Credential) ([]byte, error) {
	if cred == nil || cred.Token == nil {
		return nil, errors.New("cannot store an empty credential")
	}
	rec := storedToken{
		Token:        cred.Token.AccessToken,
		RefreshToken: cred.Token.RefreshToken,
		TokenType:    cred.Token.TokenType,
		TokenURI:     cred.TokenURI,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Scopes:       copyScopes(cred.Scopes),
	}
	if !cred.Token.Expiry.IsZero() {
		expiry := cred.Token.Expiry.UTC()
		rec.Expiry = &expiry
	}
	return json.MarshalIndent(rec, "", "  ")
}

func decodeCredential(data []byte) (*Credential, error) {
	var rec storedToken
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptToken, err)
	}
	if rec.Token == "" && rec.RefreshToken == "" {
		return nil, fmt.Errorf("%w: neither access nor refresh token present", ErrCorruptToken)
	}

	tok := &oauth2.Token{
		AccessToken:  rec.Token,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
	}
	if rec.Expiry != nil {
		tok.Expiry = *rec.Expiry
	} else if rec.Token == "" {
		// A refresh-only record has no usable access token.
		tok.Expiry = time.Unix(1, 0)
	}

	return &Credential{
		Token:        tok,
		Scopes:       rec.Scopes,
		TokenURI:     rec.TokenURI,
		ClientID:     rec.ClientID,
		ClientSecret: rec.ClientSecret,
	}, nil
}

// FileTokenStore stores the credential as a JSON file.
// Concurrent writers are not coordinated; the last write wins.
type FileTokenStore struct {
	path string
}

// NewFileTokenStore creates a token store backed by the file at path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

// Load reads the token file.
func (s *FileTokenStore) Load(_ context.Context) (*Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to read token file %s: %w", s.path, err)
	}
	cred, err := decodeCredential(data)
	if err != nil {
		return nil, fmt.Errorf("token file %s: %w", s.path, err)
	}
	return cred, nil
}

// Save writes the token file with owner-only permissions. The data is written to a
// temporary file in the same directory and renamed into place.
func (s *FileTokenStore) Save(_ context.Context, cred *Credential) error {
	data, err := encodeCredential(cred)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict token file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Clear deletes the token file.
func (s *FileTokenStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}
