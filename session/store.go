package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"idc-renew/browser"
)

// Store persists one cookie jar per account under a directory. Validity of a
// stored session is never judged here, it is established by probing the
// target at the start of a run.
type Store struct {
	dir    string
	logger *logrus.Logger
}

// NewStore creates a session store rooted at dir
func NewStore(dir string, logger *logrus.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Load returns the saved cookies for an account. Absent or corrupt session
// files are treated as "no session", never an error.
func (s *Store) Load(email string) ([]browser.Cookie, bool) {
	path := s.filePath(email)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var cookies []browser.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		s.logger.WithFields(logrus.Fields{
			"account": email,
			"file":    path,
		}).Warn("Session file is corrupt, ignoring it")
		return nil, false
	}

	if len(cookies) == 0 {
		return nil, false
	}

	s.logger.WithFields(logrus.Fields{
		"account": email,
		"cookies": len(cookies),
	}).Debug("Loaded saved session")
	return cookies, true
}

// Save persists the account's cookies, overwriting any prior record and
// creating the store directory on demand.
func (s *Store) Save(email string, cookies []browser.Cookie) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	path := s.filePath(email)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"account": email,
		"cookies": len(cookies),
		"file":    path,
	}).Debug("Session saved")
	return nil
}

func (s *Store) filePath(email string) string {
	return filepath.Join(s.dir, SafeName(email)+".json")
}

// SafeName maps an account identifier to a reversible, filesystem-safe file
// name: "alice@x.com" becomes "alice_at_x_com".
func SafeName(email string) string {
	name := strings.ReplaceAll(email, "@", "_at_")
	return strings.ReplaceAll(name, ".", "_")
}
