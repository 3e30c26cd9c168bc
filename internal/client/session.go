package client

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Profile is the authenticated account as returned by the auth endpoints.
type Profile struct {
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

type sessionState struct {
	AuthToken string   `json:"authToken"`
	Profile   *Profile `json:"profile,omitempty"`
}

// SessionStore persists the auth token and cached profile as a JSON file,
// the localStorage analogue for a headless client. An empty path keeps the
// session in memory only.
type SessionStore struct {
	mu    sync.Mutex
	path  string
	state sessionState
}

func NewSessionStore(path string) (*SessionStore, error) {
	s := &SessionStore{path: path}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		// A corrupt session file just means logging in again.
		s.state = sessionState{}
	}
	return s, nil
}

func (s *SessionStore) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AuthToken
}

func (s *SessionStore) Profile() *Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Profile == nil {
		return nil
	}
	copied := *s.state.Profile
	return &copied
}

func (s *SessionStore) LoggedIn() bool {
	return s.Token() != ""
}

func (s *SessionStore) set(token string, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = sessionState{AuthToken: token, Profile: profile}
	return s.persist()
}

func (s *SessionStore) clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = sessionState{}
	return s.persist()
}

func (s *SessionStore) persist() error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
