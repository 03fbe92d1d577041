package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestWriteContainsCurrentPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kibosh.pid")
	if err := Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := strings.TrimSpace(string(data))
	want := strconv.Itoa(os.Getpid())
	if got != want {
		t.Fatalf("pidfile contents = %q, want %q", got, want)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kibosh.pid")
	if err := Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if err := Remove(path); err != nil {
		t.Fatalf("second Remove (already gone): %v", err)
	}
}

func TestRemoveEmptyPathIsNoop(t *testing.T) {
	if err := Remove(""); err != nil {
		t.Fatalf("Remove(\"\"): %v", err)
	}
}
