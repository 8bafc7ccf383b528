package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "redfishscan"

	// DefaultTimeout bounds each HTTP request. BMCs are slow but rarely
	// take more than a few seconds per resource.
	DefaultTimeout = 30 * time.Second

	// DefaultRoot is the Redfish service root.
	DefaultRoot = "/redfish/v1"

	// DefaultFilter follows every link under the root.
	DefaultFilter = "*"

	// DefaultLogsFilter restricts the logs collector to log services of
	// systems, managers and chassis.
	DefaultLogsFilter = "/redfish/v1/*/*/LogServices"

	// DefaultConcurrency of 1 walks each service sequentially in
	// depth-first order. Many BMCs handle only a few parallel sessions.
	DefaultConcurrency = 1

	// DefaultBatchSize is the number of services scanned at once.
	DefaultBatchSize = 4

	// DefaultMaxResources caps the number of paths claimed per crawl.
	// 0 means unlimited.
	DefaultMaxResources = 0

	// DefaultRateBurst applies when a rate limit is set.
	DefaultRateBurst = 1

	// DefaultUserAgent identifies redfishscan in BMC access logs.
	DefaultUserAgent = "redfishscan/1.0 (+https://github.com/nao1215/redfishscan)"

	// DefaultMaxBodySize limits the response body read per resource.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultParquetCompression is the codec for --parquet exports.
	DefaultParquetCompression = "zstd"
)

// Authentication modes.
const (
	// AuthSession logs in through the SessionService and sends X-Auth-Token.
	AuthSession = "session"

	// AuthBasic sends HTTP basic credentials on every request.
	AuthBasic = "basic"

	// AuthNone sends no credentials.
	AuthNone = "none"
)

// Config holds the options for a redfishscan run.
// It is populated from CLI flags and passed down explicitly.
type Config struct {
	// Targets lists base URIs or target names from the config file.
	Targets []string

	// AllTargets scans every target defined in the config file.
	AllTargets bool

	// Username and Password authenticate against the service.
	Username string
	Password string

	// Auth is one of AuthSession, AuthBasic or AuthNone.
	Auth string

	// Root is the path the crawl starts from.
	Root string

	// Filter is the path pattern links must match to be followed.
	Filter string

	// Concurrency is the number of parallel fetches per service.
	// 1 keeps the deterministic depth-first order.
	Concurrency int

	// BatchSize is the number of services scanned at once.
	BatchSize int

	// MaxResources caps claimed paths per crawl. 0 means unlimited.
	MaxResources int

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// TargetTimeout bounds the whole pipeline of one target. 0 disables it.
	TargetTimeout time.Duration

	// RateLimit is the request rate per service in requests per second.
	// 0 disables limiting.
	RateLimit float64

	// RateBurst is the token bucket size when RateLimit is set.
	RateBurst int

	// Insecure skips TLS verification. BMCs commonly use self-signed certificates.
	Insecure bool

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" format.
	ProxyAddress string

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes.
	MaxBodySize int64

	// Verbose enables debug logging.
	Verbose bool

	// LogFile, when set, also writes logs to a rotating file.
	LogFile string

	// JSONReport and MarkdownReport select the report format.
	// They are mutually exclusive; text is the default.
	JSONReport     bool
	MarkdownReport bool

	// IncludeResources adds every fetched document to JSON reports.
	IncludeResources bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// ParquetFile exports a Parquet table next to the report.
	ParquetFile string

	// ParquetCompression is zstd, gzip, snappy or none.
	ParquetCompression string

	// OutputDir, when set, writes every snapshot as a JSON file tree.
	OutputDir string

	// DBDir is the directory of the run history database.
	// Defaults to the XDG data directory.
	DBDir string

	// SaveToDB records the run in the history database.
	SaveToDB bool

	// FailOnError exits non-zero when any path failed.
	FailOnError bool

	// ShowProgress draws a spinner on stderr while crawling.
	ShowProgress bool

	// ConfigFilePath is an explicit .redfishscan location.
	ConfigFilePath string

	// TargetFile holds target definitions loaded from the config file.
	TargetFile *File
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Auth:               AuthSession,
		Root:               DefaultRoot,
		Filter:             DefaultFilter,
		Concurrency:        DefaultConcurrency,
		BatchSize:          DefaultBatchSize,
		MaxResources:       DefaultMaxResources,
		Timeout:            DefaultTimeout,
		RateBurst:          DefaultRateBurst,
		UserAgent:          DefaultUserAgent,
		MaxBodySize:        DefaultMaxBodySize,
		ParquetCompression: DefaultParquetCompression,
		DBDir:              XDGDataDir(),
		SaveToDB:           true,
	}
}

// XDGDataDir returns the XDG data directory for redfishscan.
// On Linux: ~/.local/share/redfishscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for redfishscan.
// On Linux: ~/.config/redfishscan
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for redfishscan.
// On Linux: ~/.cache/redfishscan
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 && !c.AllTargets {
		return ErrNoTarget
	}
	if c.AllTargets && (c.TargetFile == nil || len(c.TargetFile.Targets) == 0) {
		return ErrNoConfiguredTargets
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.TargetTimeout < 0 {
		return ErrInvalidTargetTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.MaxResources < 0 {
		return ErrInvalidMaxResources
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateBurst <= 0) {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !strings.HasPrefix(c.Root, "/") {
		return ErrInvalidRoot
	}
	if !IsValidAuth(c.Auth) {
		return ErrInvalidAuth
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	return nil
}

// IsValidAuth reports whether mode names a supported authentication mode.
func IsValidAuth(mode string) bool {
	switch mode {
	case AuthSession, AuthBasic, AuthNone:
		return true
	default:
		return false
	}
}
