package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

const testBotID = "0190a8f2-7c3e-7b4a-9d1e-2f3a4b5c6d7e"

func TestValidateBotID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{testBotID, true},
		{strings.ToUpper(testBotID), true},
		{"", false},
		{"../../etc/passwd", false},
		{"0190a8f2-7c3e-7b4a-9d1e-2f3a4b5c6d7", false},
		{"0190a8f2-7c3e-7b4a-9d1e-2f3a4b5c6d7e/..", false},
		{"0190a8f27c3e7b4a9d1e2f3a4b5c6d7e", false},
		{"g190a8f2-7c3e-7b4a-9d1e-2f3a4b5c6d7e", false},
		{" " + testBotID, false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateBotID(tt.id)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidBotID) {
				t.Errorf("expected ErrInvalidBotID, got %v", err)
			}
		})
	}
}

func TestInvalidBotIDCreatesNothing(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	if _, err := s.CreateDir("../escape"); !errors.Is(err, ErrInvalidBotID) {
		t.Errorf("CreateDir: %v", err)
	}
	if err := s.Write("../escape", "token", "v"); !errors.Is(err, ErrInvalidBotID) {
		t.Errorf("Write: %v", err)
	}
	if _, _, err := s.Read("not-a-uuid", "token"); !errors.Is(err, ErrInvalidBotID) {
		t.Errorf("Read: %v", err)
	}
	if err := s.Delete("not-a-uuid"); !errors.Is(err, ErrInvalidBotID) {
		t.Errorf("Delete: %v", err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("root should be empty, found %d entries", len(entries))
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape")); !os.IsNotExist(err) {
		t.Error("path traversal created a directory outside the root")
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../x"} {
		if err := New(t.TempDir()).Write(testBotID, name, "v"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Write(%q) = %v, want ErrInvalidName", name, err)
		}
	}
	if err := ValidateName("TELEGRAM_BOT_TOKEN"); err != nil {
		t.Errorf("valid name rejected: %v", err)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := New(t.TempDir())

	if err := s.Write(testBotID, "TELEGRAM_BOT_TOKEN", "  123:abc\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, found, err := s.Read(testBotID, "TELEGRAM_BOT_TOKEN")
	if err != nil || !found {
		t.Fatalf("Read = %q, %v, %v", v, found, err)
	}
	if v != "123:abc" {
		t.Errorf("value = %q, want trimmed", v)
	}

	if err := s.Write(testBotID, "TELEGRAM_BOT_TOKEN", "456:def"); err != nil {
		t.Fatal(err)
	}
	if v, _, _ := s.Read(testBotID, "TELEGRAM_BOT_TOKEN"); v != "456:def" {
		t.Errorf("overwrite: got %q", v)
	}
}

func TestReadMissing(t *testing.T) {
	s := New(t.TempDir())

	// No directory at all.
	if _, found, err := s.Read(testBotID, "SMTP_PASSWORD"); found || err != nil {
		t.Errorf("missing dir: found=%v err=%v", found, err)
	}

	s.Write(testBotID, "OTHER", "x")
	if _, found, err := s.Read(testBotID, "SMTP_PASSWORD"); found || err != nil {
		t.Errorf("missing file: found=%v err=%v", found, err)
	}
}

func TestReadPropagatesIOErrors(t *testing.T) {
	s := New(t.TempDir())
	dir, err := s.CreateDir(testBotID)
	if err != nil {
		t.Fatal(err)
	}
	// A directory where a file is expected is an I/O error, not "not found".
	if err := os.Mkdir(filepath.Join(dir, "weird"), 0700); err != nil {
		t.Fatal(err)
	}
	if _, found, err := s.Read(testBotID, "weird"); err == nil || found {
		t.Errorf("expected error, got found=%v err=%v", found, err)
	}
}

func TestPermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}
	s := New(t.TempDir())

	if err := s.Write(testBotID, "token", "v"); err != nil {
		t.Fatal(err)
	}
	dirInfo, err := os.Stat(filepath.Join(s.Root(), testBotID))
	if err != nil {
		t.Fatal(err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0700 {
		t.Errorf("dir mode = %o, want 0700", perm)
	}

	path := filepath.Join(s.Root(), testBotID, "token")
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(testBotID, "token", "v2"); err != nil {
		t.Fatal(err)
	}
	fileInfo, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fileInfo.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode after overwrite = %o, want 0600", perm)
	}
}

func TestCreateDirIdempotent(t *testing.T) {
	s := New(t.TempDir())
	a, err := s.CreateDir(testBotID)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.CreateDir(testBotID)
	if err != nil || a != b {
		t.Errorf("second CreateDir = %q, %v", b, err)
	}
}

func TestDelete(t *testing.T) {
	s := New(t.TempDir())

	if err := s.Delete(testBotID); err != nil {
		t.Errorf("delete of never-created bot: %v", err)
	}

	s.Write(testBotID, "a", "1")
	s.Write(testBotID, "b", "2")
	if err := s.Delete(testBotID); err != nil {
		t.Fatal(err)
	}
	if _, found, err := s.Read(testBotID, "a"); found || err != nil {
		t.Errorf("after delete: found=%v err=%v", found, err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), testBotID)); !os.IsNotExist(err) {
		t.Error("bot dir should be gone")
	}
}

func TestList(t *testing.T) {
	s := New(t.TempDir())

	names, err := s.List(testBotID)
	if err != nil || len(names) != 0 {
		t.Fatalf("empty list = %v, %v", names, err)
	}

	s.Write(testBotID, "b", "2")
	s.Write(testBotID, "a", "1")
	names, err = s.List(testBotID)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(names, ",") != "a,b" {
		t.Errorf("names = %v", names)
	}
}

func TestIsolationBetweenBots(t *testing.T) {
	s := New(t.TempDir())
	other := "0190a8f2-0000-7b4a-9d1e-2f3a4b5c6d7e"

	s.Write(testBotID, "token", "mine")
	if _, found, _ := s.Read(other, "token"); found {
		t.Error("secret visible to another bot")
	}
	s.Delete(other)
	if v, _, _ := s.Read(testBotID, "token"); v != "mine" {
		t.Error("deleting another bot removed our secret")
	}
}

func TestDefaultRoot(t *testing.T) {
	if New("").Root() != DefaultRoot {
		t.Error("empty root should use default")
	}
}

func TestBotIDCaseInsensitive(t *testing.T) {
	s := New(t.TempDir())
	upper := strings.ToUpper(testBotID)

	if err := s.Write(upper, "token", "v1"); err != nil {
		t.Fatal(err)
	}
	if v, found, _ := s.Read(testBotID, "token"); !found || v != "v1" {
		t.Errorf("lowercase read = %q, %v", v, found)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), testBotID)); err != nil {
		t.Errorf("dir should use the lowercase id: %v", err)
	}
	if names, _ := s.List(upper); len(names) != 1 {
		t.Errorf("List(upper) = %v", names)
	}

	if err := s.Delete(upper); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := s.Read(testBotID, "token"); found {
		t.Error("delete by uppercase id left the secret behind")
	}
}
