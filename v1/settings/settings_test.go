package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mirkobrombin/go-toolkit/v1/pool"
)

func env(m map[string]string) Option {
	return WithLookup(func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	})
}

type appConfig struct {
	BotToken  string        `env:"BOT_TOKEN"`
	PGUser    string        `env:"POSTGRES_USER" default:"pg_user"`
	Workers   uint8         `env:"WORKERS" default:"4"`
	Ratio     float64       `env:"RATIO" default:"0.5"`
	Debug     bool          `env:"DEBUG"`
	Timeout   time.Duration `env:"HTTP_TIMEOUT" default:"5s"`
	Sentry    *string       `env:"SENTRY_DSN" nullable:"true"`
	Port      *int          `env:"PORT"`
	Signal    complex128    `env:"SIGNAL" default:"1+2i"`
	DSN       string        `env:"DATABASE_DSN" factory:"BuildDSN"`
	Internal  string        `env:"-"`
	unexposed string
}

func (c appConfig) BuildDSN() string {
	return "postgres://" + c.PGUser + "@db/app"
}

func TestLoadResolvesEverySource(t *testing.T) {
	var cfg appConfig
	err := Load(&cfg, env(map[string]string{
		"BOT_TOKEN":     "t0k3n",
		"POSTGRES_USER": "svc",
		"DEBUG":         "Yes",
		"PORT":          "8080",
		"HTTP_TIMEOUT":  "250ms",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BotToken != "t0k3n" || cfg.PGUser != "svc" || !cfg.Debug {
		t.Fatalf("env values not applied: %+v", cfg)
	}
	if cfg.Workers != 4 || cfg.Ratio != 0.5 || cfg.Signal != complex(1, 2) {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Timeout != 250*time.Millisecond || cfg.Port == nil || *cfg.Port != 8080 {
		t.Fatalf("typed values not applied: %+v", cfg)
	}
	if cfg.Sentry != nil {
		t.Fatalf("nullable field should stay nil, got %q", *cfg.Sentry)
	}
	if cfg.DSN != "postgres://svc@db/app" {
		t.Fatalf("factory must see resolved fields, got %q", cfg.DSN)
	}
}

func TestBoolSpellings(t *testing.T) {
	for in, want := range map[string]bool{"yes": true, "TRUE": true, "1": true, "y": true, "no": false, "0": false, "on": false} {
		if ParseBool(in) != want {
			t.Errorf("ParseBool(%q) != %v", in, want)
		}
	}
}

func TestLoadReportsAllProblems(t *testing.T) {
	var cfg appConfig
	err := Load(&cfg, env(map[string]string{"WORKERS": "300"}))
	var missing *MissingError
	if !errors.As(err, &missing) || missing.Env != "BOT_TOKEN" {
		t.Fatalf("expected missing BOT_TOKEN, got %v", err)
	}
	var parse *ParseError
	if !errors.As(err, &parse) || parse.Env != "WORKERS" {
		t.Fatalf("expected overflow on WORKERS, got %v", err)
	}
}

type badFactory struct {
	Name string `env:"NAME" factory:"Missing"`
	Size int    `env:"SIZE" factory:"Label"`
}

func (badFactory) Label() string { return "large" }

func TestFactoryErrors(t *testing.T) {
	var cfg badFactory
	err := Load(&cfg, env(nil))
	var fe *FactoryError
	if !errors.As(err, &fe) {
		t.Fatalf("expected factory error, got %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "no such method") || !strings.Contains(got, "returns string, field is int") {
		t.Fatalf("expected both factory problems, got %v", got)
	}
}

type failingFactory struct {
	Secret string `env:"SECRET" factory:"Generate"`
}

var errVault = errors.New("vault sealed")

func (*failingFactory) Generate() (string, error) { return "", errVault }

func TestFactoryReturningError(t *testing.T) {
	var cfg failingFactory
	if err := Load(&cfg, env(nil)); !errors.Is(err, errVault) {
		t.Fatalf("expected factory error to propagate, got %v", err)
	}
}

type lowerCase struct {
	Name string `env:"name" default:"x"`
}

func TestExplicitFormat(t *testing.T) {
	var cfg lowerCase
	var fe *FormatError
	if err := Load(&cfg, env(nil)); !errors.As(err, &fe) {
		t.Fatalf("expected format error, got %v", err)
	}
	if err := Load(&cfg, env(nil), WithExplicitFormat(false)); err != nil || cfg.Name != "x" {
		t.Fatalf("relaxed format: %v %+v", err, cfg)
	}
}

type withSlice struct {
	Hosts []string `env:"HOSTS"`
	Name  string   `env:"NAME" default:"n"`
}

func TestUnsupportedTypes(t *testing.T) {
	var cfg withSlice
	if err := Load(&cfg, env(map[string]string{"HOSTS": "a,b"})); err != nil || cfg.Hosts != nil || cfg.Name != "n" {
		t.Fatalf("lenient mode must skip slices: %v %+v", err, cfg)
	}
	var te *TypeError
	if err := Load(&cfg, env(nil), WithStrict(true)); !errors.As(err, &te) || te.Field != "Hosts" {
		t.Fatalf("strict mode must reject slices, got %v", err)
	}
}

func TestInvalidTarget(t *testing.T) {
	var cfg appConfig
	for _, dst := range []any{cfg, (*appConfig)(nil), new(int)} {
		if err := Load(dst, env(nil)); !errors.Is(err, errTarget) {
			t.Fatalf("expected target error for %T, got %v", dst, err)
		}
	}
}

type embedded struct {
	pool.Settings
	Service string `env:"SERVICE_NAME" default:"billing"`
}

func TestEmbeddedStructsAndPoolSettings(t *testing.T) {
	var cfg embedded
	if err := Load(&cfg, env(map[string]string{"REDIS_DB": "2"})); err != nil {
		t.Fatalf("load: %v", err)
	}
	want := pool.DefaultSettings()
	want.DB = 2
	if cfg.Settings != want || cfg.Service != "billing" {
		t.Fatalf("expected %+v, got %+v", want, cfg.Settings)
	}
}

type fromFile struct {
	Greeting string `env:"TOOLKIT_TEST_GREETING"`
	Override string `env:"TOOLKIT_TEST_OVERRIDE"`
}

func TestDotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	data := "TOOLKIT_TEST_GREETING=hello from file\nTOOLKIT_TEST_OVERRIDE=file\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TOOLKIT_TEST_OVERRIDE", "process")
	t.Cleanup(func() { _ = os.Unsetenv("TOOLKIT_TEST_GREETING") })

	var cfg fromFile
	if err := Load(&cfg, WithDotenv(path)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Greeting != "hello from file" || cfg.Override != "process" {
		t.Fatalf("unexpected values %+v", cfg)
	}

	if err := Load(&cfg, WithDotenv(filepath.Join(t.TempDir(), "missing.env"))); err == nil {
		t.Fatal("a named dotenv file must exist")
	}
}
