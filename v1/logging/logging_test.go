package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestRegistryCachesPerName(t *testing.T) {
	r := NewRegistry(slog.NewTextHandler(&bytes.Buffer{}, nil))
	a := r.Get("db.session")
	b := r.Get("db.session")
	if a != b {
		t.Fatal("expected cached logger for the same name")
	}
	if c := r.Get("http.client"); c == a {
		t.Fatal("expected distinct logger for a different name")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 named loggers, got %d", r.Len())
	}
	if r.Get("") == a {
		t.Fatal("empty name should return the root logger")
	}
}

func TestRegistryBindsHumanizedName(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(slog.NewTextHandler(&buf, nil))
	r.Get("src.database.service").Info("hello")
	if !strings.Contains(buf.String(), `logger_name=" src -> database -> service "`) {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestRegistryConcurrentGet(t *testing.T) {
	r := NewRegistry(slog.NewTextHandler(&bytes.Buffer{}, nil))
	var wg sync.WaitGroup
	got := make([]*slog.Logger, 32)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Get("lock")
		}(i)
	}
	wg.Wait()
	for _, l := range got {
		if l != got[0] {
			t.Fatal("concurrent Get returned different loggers")
		}
	}
}

func TestDefaultRegistryIsStable(t *testing.T) {
	if Default() != Default() {
		t.Fatal("Default should return the same registry")
	}
}
