// Package config loads the settings of the command-line tool from a TOML file and flags.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"httpwire.toml",
	"/etc/httpwire/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	URL string `kong:"arg,help='Target URL.'"`

	Config   string   `kong:"short='c',help='Path to TOML config file.',env='HTTPWIRE_CONFIG'"`
	Method   string   `kong:"short='X',default='GET',help='Request method.'"`
	Data     string   `kong:"short='d',help='Request body.'"`
	DataType string   `kong:"help='Media type of the request body.'"`
	Header   []string `kong:"short='H',help='Extra header as name:value, repeatable.'"`
	Form     []string `kong:"short='F',help='Multipart field as name=value, repeatable.'"`
	File     []string `kong:"help='Multipart file as name=@path, repeatable.'"`

	User     string `kong:"short='u',help='User for auth challenges.',env='HTTPWIRE_USER'"`
	Password string `kong:"help='Password for auth challenges.',env='HTTPWIRE_PASSWORD'"`

	Proxy         string `kong:"help='Proxy as host:port (overrides config).',env='HTTPWIRE_PROXY'"`
	ProxyUser     string `kong:"help='Proxy user (overrides config).'"`
	ProxyPassword string `kong:"help='Proxy password (overrides config).'"`

	Resolve []string `kong:"help='Pin a host to an address as host=addr, repeatable.'"`

	NoRedirect   bool   `kong:"help='Do not follow redirects.'"`
	MaxRedirects int    `kong:"help='Redirect limit (overrides config).'"`
	RangeStart   uint64 `kong:"help='First byte of the requested range.'"`
	RangeEnd     uint64 `kong:"help='Last byte of the requested range.'"`
	StrictDecode bool   `kong:"help='Fail on undecodable bodies instead of keeping the bytes.'"`

	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='HTTPWIRE_LOG_LEVEL'"`
	Metrics  bool   `kong:"help='Print metrics in Prometheus text format after the request.'"`
}

type Config struct {
	Client  ClientConfig  `toml:"client"`
	Proxy   ProxyConfig   `toml:"proxy"`
	Auth    AuthConfig    `toml:"auth"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`

	filePath string
}

type ClientConfig struct {
	UserAgent string `toml:"user_agent"`
	Accept    string `toml:"accept"`

	// 0 means the engine default.
	MaxRedirects          int    `toml:"max_redirects"`
	NoRedirect            bool   `toml:"no_redirect"`
	DecodeMode            string `toml:"decode_mode"`
	ReadChunkSize         int    `toml:"read_chunk_size"`
	ConnectTimeoutSeconds int    `toml:"connect_timeout_seconds"`

	// Resolve pins hosts to addresses, as host=addr.
	Resolve []string `toml:"resolve"`
}

type ProxyConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type AuthConfig struct {
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Load reads the TOML config file, if any, and applies CLI overrides.
// Without --config the search paths are tried. No file at all means defaults only.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfigInPaths(configSearchPaths)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config %s", path)
		}
		cfg.filePath = path
	}

	if err := cfg.applyCLI(cli); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) FilePath() string { return c.filePath }

func (c *Config) applyCLI(cli *CLI) error {
	if cli.Proxy != "" {
		host, port, err := net.SplitHostPort(cli.Proxy)
		if err != nil {
			host, port = cli.Proxy, ""
		}
		c.Proxy.Host = host
		c.Proxy.Port = 0
		if port != "" {
			n, err := strconv.Atoi(port)
			if err != nil {
				return errors.Wrapf(err, "proxy port of %q", cli.Proxy)
			}
			c.Proxy.Port = n
		}
	}
	if cli.ProxyUser != "" {
		c.Proxy.User = cli.ProxyUser
	}
	if cli.ProxyPassword != "" {
		c.Proxy.Password = cli.ProxyPassword
	}
	if cli.User != "" {
		c.Auth.User = cli.User
	}
	if cli.Password != "" {
		c.Auth.Password = cli.Password
	}
	c.Client.Resolve = append(c.Client.Resolve, cli.Resolve...)
	if cli.NoRedirect {
		c.Client.NoRedirect = true
	}
	if cli.MaxRedirects != 0 {
		c.Client.MaxRedirects = cli.MaxRedirects
	}
	if cli.StrictDecode {
		c.Client.DecodeMode = "strict"
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.Metrics {
		c.Metrics.Enabled = true
	}
	return nil
}

func (c *Config) validate() error {
	if c.Proxy.Port < 0 || c.Proxy.Port > 65535 {
		return errors.Errorf("proxy.port must be 0-65535; got %d", c.Proxy.Port)
	}
	if c.Proxy.Host == "" && (c.Proxy.Port != 0 || c.Proxy.User != "") {
		return errors.New("proxy.host is required when other proxy settings are given")
	}
	if c.Client.MaxRedirects < 0 {
		return errors.Errorf("client.max_redirects must be non-negative; got %d", c.Client.MaxRedirects)
	}
	if c.Client.ReadChunkSize < 0 {
		return errors.Errorf("client.read_chunk_size must be non-negative; got %d", c.Client.ReadChunkSize)
	}
	if c.Client.ConnectTimeoutSeconds < 0 {
		return errors.Errorf("client.connect_timeout_seconds must be non-negative; got %d", c.Client.ConnectTimeoutSeconds)
	}

	switch strings.ToLower(c.Client.DecodeMode) {
	case "lenient", "strict", "":
	default:
		return errors.Errorf("client.decode_mode must be one of: lenient, strict; got %q", c.Client.DecodeMode)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return errors.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}

	return nil
}

// setDefaults fills zero-valued fields. Zero means unset since TOML cannot tell it from an omitted key.
func (c *Config) setDefaults() {
	if c.Client.DecodeMode == "" {
		c.Client.DecodeMode = "lenient"
	}
	if c.Client.ConnectTimeoutSeconds == 0 {
		c.Client.ConnectTimeoutSeconds = 10
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *ClientConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
