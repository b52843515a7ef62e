// Package session persists and restores the authenticated browsing session.
//
// The session is an opaque cookie set bound to the target domain, stored as a
// pretty-printed JSON array so it stays interchangeable with the files earlier
// tooling produced. Its lifetime spans process restarts; staleness is only
// discovered by the authenticator's validation probe, never here.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"aulagrab/internal/fileutil"
)

// FileName is the cookie file kept alongside the stage outputs. Stage file
// scans must exclude it.
const FileName = "session_cookies.json"

// Cookie is one persisted browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Store reads and writes the session file.
type Store struct {
	path string
}

// NewStore builds a store rooted at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Save persists the cookie set, replacing any previous session atomically.
func (s *Store) Save(cookies []Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Load returns the persisted cookie set. A missing or empty file is not an
// error; it simply means there is no session to restore.
func (s *Store) Load() ([]Cookie, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read session: %w", err)
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, false, fmt.Errorf("parse session: %w", err)
	}
	if len(cookies) == 0 {
		return nil, false, nil
	}
	return cookies, true, nil
}
