package config

import (
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pdnstool"

	// DefaultProvider is queried when no -d letters are given.
	// BFK needs no credentials, so a fresh install works out of the box.
	DefaultProvider = "bfk"

	// DefaultFormat is the output format used when no format flag is given.
	DefaultFormat = FormatText

	// DefaultSeparator separates fields in text output.
	DefaultSeparator = "\t"

	// DefaultRecurseDepth queries the seeds only.
	DefaultRecurseDepth = 1

	// DefaultTimeout bounds a single provider lookup. Some providers take
	// minutes to answer for popular names.
	DefaultTimeout = 240 * time.Second

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// BFKMinimumWait is the pause enforced between queries when BFK is used
	// for recursive crawling. BFK is a free service and blocks aggressive clients.
	BFKMinimumWait = 60 * time.Second

	// AbusiveRecurseDepth is the depth above which a crawl is likely to be
	// throttled or blocked by providers.
	AbusiveRecurseDepth = 3
)

// Output formats.
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatXML      = "xml"
	FormatGDF      = "gdf"
	FormatGraphviz = "graphviz"
	FormatGraphML  = "graphml"
	FormatMarkdown = "markdown"
)

// SupportedFormats lists every output format in help order.
var SupportedFormats = []string{
	FormatText, FormatCSV, FormatJSON, FormatYAML, FormatXML,
	FormatGDF, FormatGraphviz, FormatGraphML, FormatMarkdown,
}

// Config holds all options for a pdnstool run.
// It is populated from CLI flags and the provider file, then passed down
// explicitly rather than held in global state.
type Config struct {
	// Providers are the config section keys of the providers to query,
	// in selection order.
	Providers []string

	// Format is one of SupportedFormats.
	Format string

	// Separator is the field separator for text and csv output.
	Separator string

	// RecurseDepth is the number of crawl levels. 1 queries only the seeds,
	// 0 queries nothing and only records the seeds.
	RecurseDepth int

	// Wait is the pause between two queries.
	Wait time.Duration

	// Limit caps the records taken from each provider per query. 0 means no limit.
	Limit int

	// Timeout is the default per-provider lookup timeout.
	// The provider file may override it per section.
	Timeout time.Duration

	// StatePath is the SQLite file for a resumable crawl. Empty keeps the
	// crawl state in memory.
	StatePath string

	// OutputFile receives the rendered results. Empty writes to stdout.
	OutputFile string

	// ConfigFilePath is the provider file given with --config.
	ConfigFilePath string

	// ProviderFile holds provider credentials and tuning loaded from the config file.
	ProviderFile *File

	// ProxyURL routes provider traffic through an HTTP or SOCKS5 proxy.
	ProxyURL string

	// UseTor routes provider traffic through an embedded Tor daemon.
	UseTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// MetricsAddr exposes Prometheus metrics when non-empty (e.g. ":9090").
	MetricsAddr string

	// UserAgent is sent with every provider request.
	UserAgent string

	// Verbose enables debug logging.
	Verbose bool

	// Targets are the seed queries.
	Targets []string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Providers:         []string{DefaultProvider},
		Format:            DefaultFormat,
		Separator:         DefaultSeparator,
		RecurseDepth:      DefaultRecurseDepth,
		Timeout:           DefaultTimeout,
		TorStartupTimeout: DefaultTorStartupTimeout,
		UserAgent:         AppName,
		ProviderFile:      NewFile(),
	}
}

// XDGDataDir returns the XDG data directory for pdnstool.
// Relative state file names without a directory are placed here.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pdnstool.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ResolveStatePath places a bare file name such as "crawl.db" under the
// XDG data directory. Paths with a directory component are returned as is.
func ResolveStatePath(path string) string {
	if path == "" || filepath.IsAbs(path) || filepath.Base(path) != path {
		return path
	}
	return filepath.Join(XDGDataDir(), path)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if len(c.Providers) == 0 {
		return ErrNoProvider
	}
	if c.RecurseDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Wait < 0 {
		return ErrInvalidWait
	}
	if c.Limit < 0 {
		return ErrInvalidLimit
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if !slices.Contains(SupportedFormats, c.Format) {
		return ErrInvalidFormat
	}
	if c.ProxyURL != "" && c.UseTor {
		return ErrConflictingProxy
	}
	return nil
}

// ApplyProviderPolicy adjusts settings that providers require for
// recursive crawling and returns human-readable notices for each change
// or risk. It must be called after Validate.
func (c *Config) ApplyProviderPolicy() []string {
	var notices []string

	if slices.Contains(c.Providers, "bfk") && c.RecurseDepth > 1 && c.Wait < BFKMinimumWait {
		c.Wait = BFKMinimumWait
		notices = append(notices, "enforcing a minimal 60 second wait when using BFK for recursive crawling")
	}

	if c.RecurseDepth > AbusiveRecurseDepth {
		notices = append(notices, "a recursion depth above 3 can be abusive to passive DNS providers, please reconsider")
	}

	return notices
}
