package lockfile

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ws.lock")

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() failed: %v", err)
	}
	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}

	if _, err := Acquire(path); !errors.Is(err, ErrHeld) {
		t.Errorf("second Acquire() error = %v, want ErrHeld", err)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release() failed: %v", err)
	}

	again, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() after Release failed: %v", err)
	}
	defer again.Release()
}

func TestDefaultPath(t *testing.T) {
	tests := []struct {
		workspace string
		want      string
	}{
		{"/srv/notes", "/srv/notes.lock"},
		{"/srv/notes/", "/srv/notes.lock"},
		{"notes", "notes.lock"},
	}

	for _, tt := range tests {
		if got := DefaultPath(tt.workspace); got != tt.want {
			t.Errorf("DefaultPath(%q) = %q, want %q", tt.workspace, got, tt.want)
		}
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release() = %v", err)
	}
}
