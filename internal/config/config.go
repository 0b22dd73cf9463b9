// Package config loads process configuration. Sources apply in order:
// defaults, an optional TOML file, environment variables, then command-line
// flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"todoapi/internal/blob"
	"todoapi/internal/core"
	"todoapi/internal/logging"

	"github.com/BurntSushi/toml"
)

// Defaults.
const (
	DefaultPort         = 8080
	DefaultSQLitePath   = "todoapi.db"
	DefaultExportRoot   = "./exports"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	DefaultIdleTimeout  = 60 * time.Second
	DefaultShutdown     = 10 * time.Second
)

// Metrics backends.
const (
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
	MetricsNone       = "none"
)

// ExportsDisabled turns the export routes off.
const ExportsDisabled = "none"

// Config is the full process configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Storage StorageConfig `toml:"storage"`
	Exports ExportConfig  `toml:"exports"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host              string        `toml:"host"`
	Port              int           `toml:"port"`
	CORSOrigins       []string      `toml:"cors_origins"`
	ReadTimeout       time.Duration `toml:"read_timeout"`
	ReadHeaderTimeout time.Duration `toml:"read_header_timeout"`
	WriteTimeout      time.Duration `toml:"write_timeout"`
	IdleTimeout       time.Duration `toml:"idle_timeout"`
	ShutdownTimeout   time.Duration `toml:"shutdown_timeout"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Timestamps bool   `toml:"timestamps"`
}

// StorageConfig selects the todo store.
type StorageConfig struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn"`
}

// ExportConfig selects the blob store exports are written to.
type ExportConfig struct {
	Driver    string        `toml:"driver"` // fs|memory|s3|none
	FSRoot    string        `toml:"fs_root"`
	URLExpiry time.Duration `toml:"url_expiry"`
	S3        S3Config      `toml:"s3"`
}

// S3Config configures the s3 export driver. Credentials fall back to the
// default AWS chain when AccessKeyID is empty.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	PathStyle       bool   `toml:"path_style"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

// MetricsConfig selects the metrics backend and optional JSON tracing.
type MetricsConfig struct {
	Backend   string `toml:"backend"` // prometheus|expvar|none
	TraceFile string `toml:"trace_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              DefaultPort,
			CORSOrigins:       []string{"*"},
			ReadTimeout:       DefaultReadTimeout,
			ReadHeaderTimeout: DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			ShutdownTimeout:   DefaultShutdown,
		},
		Log:     LogConfig{Level: "info", Format: "text", Timestamps: true},
		Storage: StorageConfig{Driver: string(core.StorageMemory), SQLitePath: DefaultSQLitePath},
		Exports: ExportConfig{Driver: string(blob.DriverFilesystem), FSRoot: DefaultExportRoot},
		Metrics: MetricsConfig{Backend: MetricsPrometheus},
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// LoadFile overlays the TOML file at path onto cfg. Keys the file does not
// set keep their current value.
func LoadFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("decode %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overlays environment variables read through getenv:
//
//	PORT                      server port
//	TODOAPI_HOST              listen host
//	TODOAPI_CORS_ORIGINS      comma separated allowed origins
//	TODOAPI_LOG_LEVEL         debug|info|warn|error
//	TODOAPI_LOG_FORMAT        text|json|logfmt
//	TODOAPI_STORAGE_DRIVER    memory|sqlite|postgres
//	TODOAPI_SQLITE_PATH       sqlite database file
//	TODOAPI_POSTGRES_DSN      postgres connection string
//	TODOAPI_EXPORT_DRIVER     fs|memory|s3|none
//	TODOAPI_EXPORT_FS_ROOT    export directory for the fs driver
//	TODOAPI_S3_BUCKET, TODOAPI_S3_REGION, TODOAPI_S3_ENDPOINT, TODOAPI_S3_PATH_STYLE
//	TODOAPI_METRICS           prometheus|expvar|none
//	TODOAPI_TRACE_FILE        JSON span output file
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	setString(&cfg.Server.Host, getenv("TODOAPI_HOST"))
	if v := getenv("TODOAPI_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}
	setString(&cfg.Log.Level, getenv("TODOAPI_LOG_LEVEL"))
	setString(&cfg.Log.Format, getenv("TODOAPI_LOG_FORMAT"))
	setString(&cfg.Storage.Driver, getenv("TODOAPI_STORAGE_DRIVER"))
	setString(&cfg.Storage.SQLitePath, getenv("TODOAPI_SQLITE_PATH"))
	setString(&cfg.Storage.PostgresDSN, getenv("TODOAPI_POSTGRES_DSN"))
	setString(&cfg.Exports.Driver, getenv("TODOAPI_EXPORT_DRIVER"))
	setString(&cfg.Exports.FSRoot, getenv("TODOAPI_EXPORT_FS_ROOT"))
	setString(&cfg.Exports.S3.Bucket, getenv("TODOAPI_S3_BUCKET"))
	setString(&cfg.Exports.S3.Region, getenv("TODOAPI_S3_REGION"))
	setString(&cfg.Exports.S3.Endpoint, getenv("TODOAPI_S3_ENDPOINT"))
	if v := getenv("TODOAPI_S3_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TODOAPI_S3_PATH_STYLE: %w", err)
		}
		cfg.Exports.S3.PathStyle = b
	}
	setString(&cfg.Metrics.Backend, getenv("TODOAPI_METRICS"))
	setString(&cfg.Metrics.TraceFile, getenv("TODOAPI_TRACE_FILE"))
	return nil
}

// Load resolves the configuration for a process invoked with args. The
// config file comes from -config, else TODOAPI_CONFIG; without either only
// defaults, environment and flags apply.
func Load(fs *flag.FlagSet, args []string, getenv func(string) string) (Config, error) {
	if fs == nil {
		fs = flag.NewFlagSet("todoapi", flag.ContinueOnError)
	}
	if getenv == nil {
		getenv = os.Getenv
	}
	var (
		path      = fs.String("config", "", "path to a TOML config file (env TODOAPI_CONFIG)")
		host      = fs.String("host", "", "listen host")
		port      = fs.Int("port", DefaultPort, "listen port (env PORT)")
		logLevel  = fs.String("log-level", "", "debug|info|warn|error")
		logFormat = fs.String("log-format", "", "text|json|logfmt")
		storage   = fs.String("storage", "", "memory|sqlite|postgres")
		exports   = fs.String("export-driver", "", "fs|memory|s3|none")
		metrics   = fs.String("metrics", "", "prometheus|expvar|none")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	file := *path
	if file == "" {
		file = getenv("TODOAPI_CONFIG")
	}
	if file != "" {
		if err := LoadFile(&cfg, file); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Server.Host = *host
		case "port":
			cfg.Server.Port = *port
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		case "storage":
			cfg.Storage.Driver = *storage
		case "export-driver":
			cfg.Exports.Driver = *exports
		case "metrics":
			cfg.Metrics.Backend = *metrics
		}
	})
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	for name, d := range map[string]time.Duration{
		"read_timeout":        c.Server.ReadTimeout,
		"read_header_timeout": c.Server.ReadHeaderTimeout,
		"write_timeout":       c.Server.WriteTimeout,
		"idle_timeout":        c.Server.IdleTimeout,
		"shutdown_timeout":    c.Server.ShutdownTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("server.%s must not be negative", name))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := logging.ParseFormatter(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}

	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory:
	case core.StorageSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path required for sqlite"))
		}
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q unknown", c.Storage.Driver))
	}

	switch c.Exports.Driver {
	case ExportsDisabled, string(blob.DriverFilesystem), string(blob.DriverMemory):
	case string(blob.DriverS3):
		if c.Exports.S3.Bucket == "" {
			errs = append(errs, errors.New("exports.s3.bucket required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("exports.driver %q unknown", c.Exports.Driver))
	}
	if c.Exports.URLExpiry < 0 {
		errs = append(errs, errors.New("exports.url_expiry must not be negative"))
	}

	switch c.Metrics.Backend {
	case MetricsPrometheus, MetricsExpvar, MetricsNone:
	default:
		errs = append(errs, fmt.Errorf("metrics.backend %q unknown", c.Metrics.Backend))
	}
	return errors.Join(errs...)
}

// ExportsEnabled reports whether the export routes are served.
func (c Config) ExportsEnabled() bool {
	return c.Exports.Driver != ExportsDisabled
}

// BlobOptions converts the export settings for blob.Open.
func (c Config) BlobOptions() blob.Options {
	s3 := c.Exports.S3
	return blob.Options{
		Driver: blob.Driver(c.Exports.Driver),
		FSRoot: c.Exports.FSRoot,
		S3: blob.S3Config{
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			PathStyle:       s3.PathStyle,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
		},
	}
}

// StorageOptions converts the storage settings for core.OpenPersistentStore.
func (c Config) StorageOptions() core.StorageOptions {
	return core.StorageOptions{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// LoggingOptions converts the log settings for logging.New.
func (c Config) LoggingOptions() logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Timestamps: c.Log.Timestamps,
		Prefix:     "todoapi",
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
