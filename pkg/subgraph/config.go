package subgraph

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"apyscope/pkg/confkit"
)

// KnownSources are the AAVE deployments indexed by Messari.
var KnownSources = []string{
	"aave-v2-avalanche",
	"aave-v2-ethereum",
	"aave-v3-arbitrum",
	"aave-v3-avalanche",
	"aave-v3-fantom",
	"aave-v3-harmony",
	"aave-v3-optimism",
	"aave-v3-polygon",
}

// Config describes the subgraph endpoint and the sources users may pick from.
type Config struct {
	Endpoint string   `yaml:"endpoint"`
	Sources  []string `yaml:"sources"`
	Defaults Defaults `yaml:"defaults"`

	TimeoutRaw     string        `yaml:"timeout"`
	Timeout        time.Duration `yaml:"-"`
	HTTPTimeoutRaw string        `yaml:"http_timeout"`
	HTTPTimeout    time.Duration `yaml:"-"`
	MaxRetries     int           `yaml:"max_retries"`
	PageSize       int           `yaml:"page_size"`
}

// Defaults preselect sources and markets for the presentation layer.
type Defaults struct {
	Sources []string `yaml:"sources"`
	Markets []string `yaml:"markets"`
}

// DefaultConfig mirrors the hosted-service setup with every known source.
func DefaultConfig() *Config {
	sources := make([]string, len(KnownSources))
	copy(sources, KnownSources)
	return &Config{
		Endpoint: DefaultEndpoint,
		Sources:  sources,
		Defaults: Defaults{
			Sources: []string{"aave-v2-ethereum", "aave-v3-polygon"},
			Markets: []string{
				"aave-v2-ethereum: Aave interest bearing USDC",
				"aave-v3-polygon: USD Coin (PoS)",
			},
		},
		PageSize: defaultPageSize,
	}
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sources config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal sources config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalise() error {
	c.Endpoint = strings.TrimSpace(os.ExpandEnv(c.Endpoint))
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if len(c.Sources) == 0 {
		c.Sources = append([]string(nil), KnownSources...)
	}
	for i, s := range c.Sources {
		c.Sources[i] = strings.TrimSpace(os.ExpandEnv(s))
	}
	if c.PageSize == 0 {
		c.PageSize = defaultPageSize
	}
	return c.parseDurations()
}

func (c *Config) parseDurations() error {
	c.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.TimeoutRaw))
	c.HTTPTimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.HTTPTimeoutRaw))
	if c.TimeoutRaw != "" {
		d, err := time.ParseDuration(c.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("sources config: invalid timeout %q: %w", c.TimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("sources config: timeout must be positive, got %s", d)
		}
		c.Timeout = d
	}
	if c.HTTPTimeoutRaw != "" {
		d, err := time.ParseDuration(c.HTTPTimeoutRaw)
		if err != nil {
			return fmt.Errorf("sources config: invalid http_timeout %q: %w", c.HTTPTimeoutRaw, err)
		}
		if d <= 0 {
			return fmt.Errorf("sources config: http_timeout must be positive, got %s", d)
		}
		c.HTTPTimeout = d
	}
	return nil
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("sources config: endpoint must be an http(s) URL, got %q", c.Endpoint)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("sources config: max_retries cannot be negative")
	}
	if c.PageSize < 0 {
		return fmt.Errorf("sources config: page_size cannot be negative")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s == "" {
			return fmt.Errorf("sources config: source name cannot be empty")
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("sources config: duplicate source %q", s)
		}
		seen[s] = struct{}{}
	}
	for _, s := range c.Defaults.Sources {
		if _, ok := seen[s]; !ok {
			return fmt.Errorf("sources config: default source %q not defined", s)
		}
	}
	return nil
}

// BuildClient instantiates a client restricted to the configured sources.
func (c *Config) BuildClient(extra ...Option) *Client {
	opts := []Option{
		WithEndpoint(c.Endpoint),
		WithSources(c.Sources...),
		WithMaxRetries(c.MaxRetries),
	}
	if c.PageSize > 0 {
		opts = append(opts, WithPageSize(c.PageSize))
	}
	if c.Timeout > 0 {
		opts = append(opts, WithTimeout(c.Timeout))
	}
	if c.HTTPTimeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: c.HTTPTimeout}))
	}
	return NewClient(append(opts, extra...)...)
}
