// Package secrets stores per-bot channel credentials as individual files
// under <root>/<botID>/<name>. Directories are 0700 and files 0600, so each
// bot's credentials are readable only by the gateway's user.
//
// Writes are unlocked; concurrent writers to the same name race and the
// last write wins.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultRoot is used when no secrets root is configured.
const DefaultRoot = "./secrets"

const (
	dirMode  fs.FileMode = 0700
	fileMode fs.FileMode = 0600
)

var (
	// ErrInvalidBotID rejects anything that is not a UUID before it can be
	// joined into a path.
	ErrInvalidBotID = errors.New("secrets: invalid bot id")

	// ErrInvalidName rejects secret names that are not a single path element.
	ErrInvalidName = errors.New("secrets: invalid secret name")
)

var botIDRe = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateBotID checks the strict 8-4-4-4-12 hex UUID shape (any case).
func ValidateBotID(id string) error {
	if !botIDRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidBotID, id)
	}
	return nil
}

// ValidateName checks that name is usable as a file name inside a bot dir.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Store is a filesystem-backed per-bot secret store.
type Store struct {
	root string
}

// New creates a store rooted at root. An empty root selects DefaultRoot.
func New(root string) *Store {
	if root == "" {
		root = DefaultRoot
	}
	return &Store{root: root}
}

// Root returns the secrets root directory.
func (s *Store) Root() string { return s.root }

// botDir maps every letter case of a UUID to the same lowercase directory.
func (s *Store) botDir(botID string) string {
	return filepath.Join(s.root, strings.ToLower(botID))
}

// CreateDir ensures the bot's secrets directory exists with mode 0700 and
// returns its path. Idempotent.
func (s *Store) CreateDir(botID string) (string, error) {
	if err := ValidateBotID(botID); err != nil {
		return "", err
	}
	dir := s.botDir(botID)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return "", fmt.Errorf("create secrets dir: %w", err)
	}
	// MkdirAll leaves an existing dir's mode alone and is subject to umask.
	if err := os.Chmod(dir, dirMode); err != nil {
		return "", fmt.Errorf("chmod secrets dir: %w", err)
	}
	return dir, nil
}

// Write stores value under name, replacing any previous value.
func (s *Store) Write(botID, name, value string) error {
	if err := ValidateBotID(botID); err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	dir, err := s.CreateDir(botID)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(value), fileMode); err != nil {
		return fmt.Errorf("write secret %s: %w", name, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, fileMode); err != nil {
		return fmt.Errorf("chmod secret %s: %w", name, err)
	}
	return nil
}

// Read returns the trimmed secret value. found is false when the secret (or
// the bot's directory) does not exist; any other I/O failure is an error.
func (s *Store) Read(botID, name string) (value string, found bool, err error) {
	if err := ValidateBotID(botID); err != nil {
		return "", false, err
	}
	if err := ValidateName(name); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(filepath.Join(s.botDir(botID), name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// List returns the names of the bot's secrets, sorted. A bot without a
// secrets directory has none.
func (s *Store) List(botID string) ([]string, error) {
	if err := ValidateBotID(botID); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.botDir(botID))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes all of the bot's secrets. Deleting a bot that never had
// secrets is not an error.
func (s *Store) Delete(botID string) error {
	if err := ValidateBotID(botID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.botDir(botID)); err != nil {
		return fmt.Errorf("delete secrets: %w", err)
	}
	return nil
}
