package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestNewConfig documents the defaults. A failing subtest means a default
// changed and the help text and README need to follow.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default provider is bfk", func(t *testing.T) {
		t.Parallel()
		if len(cfg.Providers) != 1 || cfg.Providers[0] != "bfk" {
			t.Errorf("expected [bfk], got %v", cfg.Providers)
		}
	})

	t.Run("default format is tab separated text", func(t *testing.T) {
		t.Parallel()
		if cfg.Format != FormatText || cfg.Separator != "\t" {
			t.Errorf("expected text with tab separator, got %q %q", cfg.Format, cfg.Separator)
		}
	})

	t.Run("default recursion depth is 1", func(t *testing.T) {
		t.Parallel()
		if cfg.RecurseDepth != 1 {
			t.Errorf("expected 1, got %d", cfg.RecurseDepth)
		}
	})

	t.Run("default wait and limit are zero", func(t *testing.T) {
		t.Parallel()
		if cfg.Wait != 0 || cfg.Limit != 0 {
			t.Errorf("expected zero wait and limit, got %v %d", cfg.Wait, cfg.Limit)
		}
	})

	t.Run("default timeout is 240 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 240*time.Second {
			t.Errorf("expected 240s, got %v", cfg.Timeout)
		}
	})

	t.Run("state is kept in memory by default", func(t *testing.T) {
		t.Parallel()
		if cfg.StatePath != "" {
			t.Errorf("expected empty state path, got %q", cfg.StatePath)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	validConfig := func() *Config {
		cfg := NewConfig()
		cfg.Targets = []string{"example.org"}
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid config", modify: func(*Config) {}, wantErr: nil},
		{name: "no targets", modify: func(c *Config) { c.Targets = nil }, wantErr: ErrNoTarget},
		{name: "no providers", modify: func(c *Config) { c.Providers = nil }, wantErr: ErrNoProvider},
		{name: "negative depth", modify: func(c *Config) { c.RecurseDepth = -1 }, wantErr: ErrInvalidDepth},
		{name: "zero depth is valid", modify: func(c *Config) { c.RecurseDepth = 0 }, wantErr: nil},
		{name: "negative wait", modify: func(c *Config) { c.Wait = -time.Second }, wantErr: ErrInvalidWait},
		{name: "negative limit", modify: func(c *Config) { c.Limit = -5 }, wantErr: ErrInvalidLimit},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "unknown format", modify: func(c *Config) { c.Format = "html" }, wantErr: ErrInvalidFormat},
		{name: "graphml format", modify: func(c *Config) { c.Format = FormatGraphML }, wantErr: nil},
		{
			name: "proxy and tor together",
			modify: func(c *Config) {
				c.ProxyURL = "socks5://127.0.0.1:9050"
				c.UseTor = true
			},
			wantErr: ErrConflictingProxy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApplyProviderPolicy(t *testing.T) {
	t.Parallel()

	t.Run("bfk with recursion enforces a 60 second wait", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.RecurseDepth = 2

		notices := cfg.ApplyProviderPolicy()
		if cfg.Wait != BFKMinimumWait {
			t.Errorf("expected wait %v, got %v", BFKMinimumWait, cfg.Wait)
		}
		if len(notices) != 1 {
			t.Errorf("expected one notice, got %v", notices)
		}
	})

	t.Run("bfk without recursion keeps the wait", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()

		if notices := cfg.ApplyProviderPolicy(); len(notices) != 0 {
			t.Errorf("expected no notices, got %v", notices)
		}
		if cfg.Wait != 0 {
			t.Errorf("expected zero wait, got %v", cfg.Wait)
		}
	})

	t.Run("longer user wait is kept", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.RecurseDepth = 2
		cfg.Wait = 90 * time.Second

		cfg.ApplyProviderPolicy()
		if cfg.Wait != 90*time.Second {
			t.Errorf("expected 90s, got %v", cfg.Wait)
		}
	})

	t.Run("deep recursion warns", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.Providers = []string{"dnsdb"}
		cfg.RecurseDepth = 4

		notices := cfg.ApplyProviderPolicy()
		if len(notices) != 1 || !strings.Contains(notices[0], "abusive") {
			t.Errorf("expected abusive warning, got %v", notices)
		}
		if cfg.Wait != 0 {
			t.Errorf("non-bfk crawl must not change wait, got %v", cfg.Wait)
		}
	})
}

func TestResolveStatePath(t *testing.T) {
	t.Parallel()

	if got := ResolveStatePath(""); got != "" {
		t.Errorf("expected empty path, got %q", got)
	}
	if got := ResolveStatePath("./crawl.db"); got != "./crawl.db" {
		t.Errorf("expected relative path with directory to be kept, got %q", got)
	}
	abs := filepath.Join(t.TempDir(), "crawl.db")
	if got := ResolveStatePath(abs); got != abs {
		t.Errorf("expected absolute path to be kept, got %q", got)
	}
	if got := ResolveStatePath("crawl.db"); got != filepath.Join(XDGDataDir(), "crawl.db") {
		t.Errorf("expected bare name under XDG data dir, got %q", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("loads provider sections", func(t *testing.T) {
		t.Parallel()

		content := `
defaults:
  timeout: 30s
providers:
  DNSDB:
    APIKEY: "0123456789abcdef"
    url: "https://api.dnsdb.info/lookup"
    rate: 10
  osc:
    apikey: abc
    timeout: 20s
`
		path := filepath.Join(t.TempDir(), ".pdnstool")
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		cf, err := LoadConfigFile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		dnsdb := cf.Provider("dnsdb")
		if dnsdb.Get("apikey") != "0123456789abcdef" {
			t.Errorf("expected apikey, got %q", dnsdb.Get("apikey"))
		}
		if dnsdb.Get("URL") != "https://api.dnsdb.info/lookup" {
			t.Errorf("expected url, got %q", dnsdb.Get("url"))
		}
		if dnsdb.Rate != 10 {
			t.Errorf("expected rate 10, got %v", dnsdb.Rate)
		}
		if dnsdb.Timeout != 30*time.Second {
			t.Errorf("expected default timeout 30s, got %v", dnsdb.Timeout)
		}

		if osc := cf.Provider("osc"); osc.Timeout != 20*time.Second {
			t.Errorf("expected osc timeout 20s, got %v", osc.Timeout)
		}
	})

	t.Run("unknown section falls back to defaults", func(t *testing.T) {
		t.Parallel()

		cf := NewFile()
		cf.Defaults.Timeout = time.Minute
		pc := cf.Provider("bfk")
		if pc.Timeout != time.Minute || len(pc.Settings) != 0 {
			t.Errorf("unexpected provider config: %+v", pc)
		}
	})

	t.Run("missing file returns ErrConfigNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid yaml returns error", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("providers: [unclosed"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfigFile(path); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("explicit path that exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("defaults: {}"), 0600); err != nil {
			t.Fatal(err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("expected %q, got %q", path, got)
		}
	})

	t.Run("explicit path that does not exist", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if !strings.HasSuffix(XDGDataDir(), AppName) {
		t.Errorf("expected data dir to end with %q, got %q", AppName, XDGDataDir())
	}
	if !strings.HasSuffix(XDGConfigDir(), AppName) {
		t.Errorf("expected config dir to end with %q, got %q", AppName, XDGConfigDir())
	}
}
