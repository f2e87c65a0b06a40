package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpString(t *testing.T) {
	if got := (OpCreate | OpWrite).String(); got != "create|write" {
		t.Fatalf("got %q", got)
	}
	if got := Op(0).String(); got != "none" {
		t.Fatalf("got %q", got)
	}
}

func TestExtensions(t *testing.T) {
	cases := map[string]bool{
		"a.json":     true,
		"dir/b.YAML": true,
		"c.yml":      true,
		"d.txt":      false,
		"json":       false,
	}
	for p, want := range cases {
		if got := Representations(p); got != want {
			t.Errorf("%s: got %v want %v", p, got, want)
		}
	}
}

func TestWatcher_ReportsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Representations)
	if err != nil {
		t.Skip("fsnotify unavailable:", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "tree.json")
	if err := os.WriteFile(target, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if filepath.Base(ev.Path) == "ignored.txt" {
				t.Fatalf("filtered path reported: %v", ev)
			}
			if ev.Path == target && ev.Op&(OpCreate|OpWrite) != 0 {
				return
			}
		case err := <-w.Errors():
			t.Fatal(err)
		case <-deadline:
			t.Fatal("no event for", target)
		}
	}
}

func TestWatcher_CloseEndsEvents(t *testing.T) {
	w, err := New(nil)
	if err != nil {
		t.Skip("fsnotify unavailable:", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal("second close:", err)
	}
	select {
	case _, ok := <-w.Events():
		if ok {
			t.Fatal("unexpected event after close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}
}
