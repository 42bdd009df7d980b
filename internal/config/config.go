package config

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dshills/arbor/internal/config/loader"
	"github.com/dshills/arbor/internal/logging"
	"github.com/dshills/arbor/internal/mutate"
	"github.com/dshills/arbor/internal/value"
)

// ErrFileNotFound is returned when an explicitly named configuration file
// does not exist.
var ErrFileNotFound = errors.New("config file not found")

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is text or json.
	Format string
}

// StoreConfig configures the document store.
type StoreConfig struct {
	// Seed is a document file loaded as the initial tree.
	Seed string

	// SeedFormat overrides the format implied by the seed file extension.
	SeedFormat string

	// KeyPrefix is prepended to generated keys.
	KeyPrefix string
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string

	// Namespace prefixes every metric name.
	Namespace string
}

// WatchConfig configures seed reloading.
type WatchConfig struct {
	// Enabled reloads the seed whenever the file changes.
	Enabled bool

	// Debounce coalesces bursts of file events.
	Debounce time.Duration
}

// Config is the complete runtime configuration.
type Config struct {
	Log     LogConfig
	Store   StoreConfig
	Metrics MetricsConfig
	Watch   WatchConfig

	// Source is the configuration file that was read, if any.
	Source string
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(err)
	}
	return cfg
}

func defaults() map[string]any {
	return map[string]any{
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"store": map[string]any{
			"seed":       "",
			"seedFormat": "",
			"keyPrefix":  "",
		},
		"metrics": map[string]any{
			"addr":      "",
			"namespace": "arbor",
		},
		"watch": map[string]any{
			"enabled":  false,
			"debounce": "100ms",
		},
	}
}

type options struct {
	file      string
	fs        loader.FileSystem
	env       loader.Loader
	overrides map[string]any
}

// Option configures Load.
type Option func(*options)

// WithFile reads the given configuration file. The file must exist.
func WithFile(path string) Option {
	return func(o *options) {
		o.file = path
	}
}

// WithFS reads configuration files from fsys.
func WithFS(fsys loader.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithEnv replaces the environment layer. Pass nil to skip it.
func WithEnv(l loader.Loader) Option {
	return func(o *options) {
		o.env = l
	}
}

// WithOverrides adds a top layer, typically built from command line flags.
// Keys are dot separated paths such as "log.level".
func WithOverrides(overrides map[string]any) Option {
	return func(o *options) {
		o.overrides = overrides
	}
}

// Load builds the configuration from all layers and validates it.
func Load(opts ...Option) (*Config, error) {
	o := options{
		fs:  loader.DefaultFS(),
		env: loader.NewEnvLoader(loader.EnvPrefix),
	}
	for _, opt := range opts {
		opt(&o)
	}

	merged := defaults()

	if o.file != "" {
		layer, err := loader.NewFileLoaderWithFS(o.fs, o.file).Load()
		if err != nil {
			return nil, err
		}
		if layer == nil {
			return nil, errors.Wrapf(ErrFileNotFound, "%s", o.file)
		}
		merged = loader.DeepMerge(merged, layer)
	}

	if o.env != nil {
		layer, err := o.env.Load()
		if err != nil {
			return nil, errors.Wrap(err, "loading environment")
		}
		merged = loader.DeepMerge(merged, layer)
	}

	if len(o.overrides) > 0 {
		layer := make(map[string]any)
		for path, v := range o.overrides {
			setPath(layer, path, v)
		}
		merged = loader.DeepMerge(merged, layer)
	}

	cfg, err := decode(merged)
	if err != nil {
		return nil, err
	}
	cfg.Source = o.file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setPath(m map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

func decode(m map[string]any) (*Config, error) {
	d := decoder{m: m}
	cfg := &Config{
		Log: LogConfig{
			Level:  d.string("log.level"),
			Format: d.string("log.format"),
		},
		Store: StoreConfig{
			Seed:       d.string("store.seed"),
			SeedFormat: d.string("store.seedFormat"),
			KeyPrefix:  d.string("store.keyPrefix"),
		},
		Metrics: MetricsConfig{
			Addr:      d.string("metrics.addr"),
			Namespace: d.string("metrics.namespace"),
		},
		Watch: WatchConfig{
			Enabled:  d.bool("watch.enabled"),
			Debounce: d.duration("watch.debounce"),
		},
	}
	if d.err != nil {
		return nil, d.err
	}
	return cfg, nil
}

// decoder reads typed settings, keeping the first conversion error.
type decoder struct {
	m   map[string]any
	err error
}

func (d *decoder) fail(path, expected string, v any) {
	if d.err == nil {
		d.err = &TypeError{Path: path, Expected: expected, Actual: fmt.Sprintf("%T", v)}
	}
}

func (d *decoder) string(path string) string {
	v, ok := loader.Lookup(d.m, path)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case int64, float64, bool:
		return fmt.Sprint(t)
	}
	d.fail(path, "string", v)
	return ""
}

func (d *decoder) bool(path string) bool {
	v, ok := loader.Lookup(d.m, path)
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int:
		return t != 0
	case string:
		b, err := strconv.ParseBool(t)
		if err == nil {
			return b
		}
	}
	d.fail(path, "bool", v)
	return false
}

// duration accepts Go duration strings or a number of milliseconds.
func (d *decoder) duration(path string) time.Duration {
	v, ok := loader.Lookup(d.m, path)
	if !ok || v == nil {
		return 0
	}
	switch t := v.(type) {
	case time.Duration:
		return t
	case int64:
		return time.Duration(t) * time.Millisecond
	case int:
		return time.Duration(t) * time.Millisecond
	case float64:
		return time.Duration(t * float64(time.Millisecond))
	case string:
		dur, err := time.ParseDuration(t)
		if err == nil {
			return dur
		}
	}
	d.fail(path, "duration", v)
	return 0
}

// Validate checks every setting.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log.level", Message: "unknown log level", Value: c.Log.Level}
	}
	switch logging.Format(strings.ToLower(c.Log.Format)) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return &ValidationError{Path: "log.format", Message: "must be text or json", Value: c.Log.Format}
	}
	if c.Store.SeedFormat != "" {
		if _, ok := value.FormatFromExt(c.Store.SeedFormat); !ok {
			return &ValidationError{Path: "store.seedFormat", Message: "must be json, yaml or toml", Value: c.Store.SeedFormat}
		}
	}
	if c.Store.KeyPrefix != "" && !mutate.LegalKey(c.Store.KeyPrefix) {
		return &ValidationError{Path: "store.keyPrefix", Message: "contains characters illegal in keys", Value: c.Store.KeyPrefix}
	}
	if c.Watch.Debounce < 0 {
		return &ValidationError{Path: "watch.debounce", Message: "must not be negative", Value: c.Watch.Debounce}
	}
	if c.Watch.Enabled && c.Store.Seed == "" {
		return &ValidationError{Path: "watch.enabled", Message: "watching requires store.seed", Value: true}
	}
	return nil
}

// SeedFormat returns the format of the seed document.
func (c *Config) SeedFormat() (value.Format, error) {
	if c.Store.SeedFormat != "" {
		f, _ := value.FormatFromExt(c.Store.SeedFormat)
		return f, nil
	}
	f, ok := value.FormatFromExt(filepath.Ext(c.Store.Seed))
	if !ok {
		return "", &ValidationError{Path: "store.seed", Message: "cannot infer format from extension", Value: c.Store.Seed}
	}
	return f, nil
}

// KeyGenerator returns the generator for unnamed creates, honoring
// KeyPrefix.
func (c *Config) KeyGenerator() mutate.KeyGenerator {
	prefix := c.Store.KeyPrefix
	if prefix == "" {
		return mutate.GenerateKey
	}
	return func() string {
		return prefix + mutate.GenerateKey()
	}
}

// LoggerConfig returns the logger settings writing to w.
func (c *Config) LoggerConfig(w io.Writer) logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()
	cfg.Level = logging.ParseLogLevel(c.Log.Level)
	cfg.Format = logging.Format(strings.ToLower(c.Log.Format))
	if w != nil {
		cfg.Output = w
	}
	return cfg
}
