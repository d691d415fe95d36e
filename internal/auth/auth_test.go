package auth

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quiet() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()

	if tok, ok := Static(" abc ").Token(ctx); !ok || tok != "abc" {
		t.Errorf("Static(abc).Token() = %q, %v", tok, ok)
	}
	if _, ok := Static("").Token(ctx); ok {
		t.Error("empty Static reports a token")
	}
}

func TestFileSource_Missing(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "token"), quiet())

	if _, ok := src.Token(context.Background()); ok {
		t.Error("missing token file reports a token")
	}
}

// TestFileSource_Caches tests that the file is only re-read after invalidation
func TestFileSource_Caches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("first\n"), 0600); err != nil {
		t.Fatal(err)
	}
	src := NewFileSource(path, quiet())
	ctx := context.Background()

	if tok, _ := src.Token(ctx); tok != "first" {
		t.Fatalf("Token() = %q, want first", tok)
	}

	if err := os.WriteFile(path, []byte("second"), 0600); err != nil {
		t.Fatal(err)
	}
	if tok, _ := src.Token(ctx); tok != "first" {
		t.Errorf("Token() = %q before invalidate, want cached first", tok)
	}

	src.invalidate()
	if tok, _ := src.Token(ctx); tok != "second" {
		t.Errorf("Token() = %q after invalidate, want second", tok)
	}
}

// TestFileSource_Watch tests that file changes are picked up by the watcher
func TestFileSource_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}
	src := NewFileSource(path, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx) }()

	if tok, _ := src.Token(ctx); tok != "old" {
		t.Fatalf("Token() = %q, want old", tok)
	}

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("new"), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		if tok, _ := src.Token(ctx); tok == "new" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("token change not observed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	c := Chain{nil, Static(""), Static("second"), Static("third")}
	if tok, ok := c.Token(ctx); !ok || tok != "second" {
		t.Errorf("Chain.Token() = %q, %v, want second", tok, ok)
	}
	if _, ok := (Chain{}).Token(ctx); ok {
		t.Error("empty Chain reports a token")
	}
}
