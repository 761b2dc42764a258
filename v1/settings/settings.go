// Package settings fills configuration structs from the environment.
//
// Fields are described with struct tags:
//
//	type Config struct {
//		BotToken string        `env:"BOT_TOKEN"`
//		PGUser   string        `env:"POSTGRES_USER" default:"pg_user"`
//		Timeout  time.Duration `env:"HTTP_TIMEOUT" default:"5s"`
//		Sentry   *string       `env:"SENTRY_DSN" nullable:"true"`
//		DSN      string        `env:"DATABASE_DSN" factory:"BuildDSN"`
//	}
//
// A variable present in the environment always wins. Otherwise the default
// is parsed, then the factory method is called once every other field is set,
// then nullable fields are left at their zero value. Anything else is a
// *MissingError.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mirkobrombin/go-toolkit/v1/logging"
)

var (
	errTarget   = errors.New("settings: target must be a non-nil pointer to a struct")
	upperSnake  = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	durationTyp = reflect.TypeOf(time.Duration(0))
	errorTyp    = reflect.TypeOf((*error)(nil)).Elem()
)

type loader struct {
	explicitFormat bool
	strict         bool
	dotenv         []string
	logger         *slog.Logger
	lookup         func(string) (string, bool)
}

// Option configures Load.
type Option func(*loader)

// WithExplicitFormat toggles the UPPER_SNAKE_CASE check on env names. It is
// on by default.
func WithExplicitFormat(v bool) Option {
	return func(l *loader) {
		l.explicitFormat = v
	}
}

// WithStrict makes unsupported field types an error instead of a warning.
func WithStrict(v bool) Option {
	return func(l *loader) {
		l.strict = v
	}
}

// WithDotenv loads the given files instead of ./.env. Unlike the implicit
// ./.env, a named file that cannot be read is an error.
func WithDotenv(paths ...string) Option {
	return func(l *loader) {
		l.dotenv = paths
	}
}

// WithLogger sets the logger reporting where each field came from.
func WithLogger(lg *slog.Logger) Option {
	return func(l *loader) {
		l.logger = lg
	}
}

// WithLookup replaces os.LookupEnv. Dotenv files are still loaded into the
// process environment.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(l *loader) {
		l.lookup = fn
	}
}

type deferred struct {
	field  reflect.Value
	name   string
	env    string
	method string
}

// Load fills dst from the environment. Variables already set in the process
// environment are never overridden by dotenv files. All field errors are
// reported together.
func Load(dst any, opts ...Option) error {
	l := &loader{explicitFormat: true, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logging.Default().Get("settings")
	}

	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errTarget
	}
	if err := l.loadDotenv(); err != nil {
		return err
	}

	var (
		errs  []error
		later []deferred
	)
	l.fill(rv.Elem(), &errs, &later)
	for _, d := range later {
		if err := l.runFactory(rv, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MustLoad is Load for program start-up: it panics on error.
func MustLoad(dst any, opts ...Option) {
	if err := Load(dst, opts...); err != nil {
		panic(err)
	}
}

func (l *loader) loadDotenv() error {
	if len(l.dotenv) > 0 {
		if err := godotenv.Load(l.dotenv...); err != nil {
			return fmt.Errorf("settings: load dotenv: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("settings: load .env: %w", err)
	}
	return nil
}

func (l *loader) fill(v reflect.Value, errs *[]error, later *[]deferred) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		fv := v.Field(i)
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct {
			l.fill(fv, errs, later)
			continue
		}

		env := sf.Tag.Get("env")
		if env == "-" {
			continue
		}
		if env == "" {
			env = sf.Name
		}
		if l.explicitFormat && !upperSnake.MatchString(env) {
			*errs = append(*errs, &FormatError{Field: sf.Name, Env: env})
			continue
		}
		if !supported(sf.Type) {
			if l.strict {
				*errs = append(*errs, &TypeError{Field: sf.Name, Type: sf.Type.String()})
			} else {
				l.logger.Warn("toolkit: skipping setting with unsupported type", "field", sf.Name, "type", sf.Type.String())
			}
			continue
		}

		if raw, ok := l.lookup(env); ok {
			if err := set(fv, raw); err != nil {
				*errs = append(*errs, &ParseError{Field: sf.Name, Env: env, Value: raw, Err: err})
				continue
			}
			l.logger.Debug("toolkit: setting resolved", "env", env, "source", "environment")
			continue
		}
		if def, ok := sf.Tag.Lookup("default"); ok {
			if err := set(fv, def); err != nil {
				*errs = append(*errs, &ParseError{Field: sf.Name, Env: env, Value: def, Err: err})
				continue
			}
			l.logger.Debug("toolkit: setting resolved", "env", env, "source", "default")
			continue
		}
		if method := sf.Tag.Get("factory"); method != "" {
			*later = append(*later, deferred{field: fv, name: sf.Name, env: env, method: method})
			continue
		}
		if nullable, _ := strconv.ParseBool(sf.Tag.Get("nullable")); nullable {
			fv.SetZero()
			l.logger.Debug("toolkit: setting resolved", "env", env, "source", "null")
			continue
		}
		*errs = append(*errs, &MissingError{Field: sf.Name, Env: env})
	}
}

// runFactory calls a method of the form func() T or func() (T, error) on
// the target and stores its result.
func (l *loader) runFactory(target reflect.Value, d deferred) error {
	m := target.MethodByName(d.method)
	if !m.IsValid() {
		return &FactoryError{Field: d.name, Method: d.method, Reason: "no such method"}
	}
	mt := m.Type()
	if mt.NumIn() != 0 || mt.NumOut() == 0 || mt.NumOut() > 2 {
		return &FactoryError{Field: d.name, Method: d.method, Reason: "must take no arguments and return a value"}
	}
	if mt.NumOut() == 2 && mt.Out(1) != errorTyp {
		return &FactoryError{Field: d.name, Method: d.method, Reason: "second result must be an error"}
	}
	if !mt.Out(0).AssignableTo(d.field.Type()) {
		return &FactoryError{Field: d.name, Method: d.method, Reason: fmt.Sprintf("returns %s, field is %s", mt.Out(0), d.field.Type())}
	}
	out := m.Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return fmt.Errorf("settings: factory %s for field %s: %w", d.method, d.name, out[1].Interface().(error))
	}
	d.field.Set(out[0])
	l.logger.Debug("toolkit: setting resolved", "env", d.env, "source", "factory")
	return nil
}

func supported(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

// ParseBool treats yes, true, 1 and y as true, in any case, and everything
// else as false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

func set(v reflect.Value, raw string) error {
	if v.Kind() == reflect.Pointer {
		p := reflect.New(v.Type().Elem())
		if err := set(p.Elem(), raw); err != nil {
			return err
		}
		v.Set(p)
		return nil
	}
	if v.Type() == durationTyp {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		v.SetInt(int64(d))
		return nil
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		v.SetBool(ParseBool(raw))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Complex64, reflect.Complex128:
		c, err := strconv.ParseComplex(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetComplex(c)
	default:
		return fmt.Errorf("unsupported kind %s", v.Kind())
	}
	return nil
}
