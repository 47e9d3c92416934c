// Package config loads the ftpsh configuration file.
package config

import (
	"io/ioutil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/proxy"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"gopkg.in/yaml.v2"

	"github.com/gonzalop/ftpsh"
)

// PasswordEnv names the environment variable holding the login password.
// Passwords are never read from the file itself.
const PasswordEnv = "FTPSH_PASSWORD"

// Config is the on-disk configuration.
type Config struct {
	Port         int           `yaml:"port"`
	FallbackPort int           `yaml:"fallback_port"`
	Passive      bool          `yaml:"passive"`
	TransferMode string        `yaml:"transfer_mode"`
	Debug        bool          `yaml:"debug"`
	Timeout      time.Duration `yaml:"timeout"`
	BufferSize   int           `yaml:"buffer_size"`
	Charset      string        `yaml:"charset"`
	Proxy        string        `yaml:"proxy"`
	LocalDir     string        `yaml:"local_dir"`
	MaxCascade   int           `yaml:"max_cascade"`
	RateLimit    int64         `yaml:"rate_limit"`
	LogLevel     string        `yaml:"log_level"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:         ftpsh.DefaultPort,
		FallbackPort: ftpsh.DefaultFallbackPort,
		Passive:      true,
		TransferMode: "binary",
		BufferSize:   ftpsh.DefaultBufferSize,
		LocalDir:     ".",
		MaxCascade:   8,
		LogLevel:     "warn",
	}
}

// ReadConfig reads path over the defaults and picks up the password from
// the environment. An empty path yields the defaults.
func ReadConfig(path string) (Config, error) {
	conf := Default()
	if path != "" {
		f, err := ioutil.ReadFile(path)
		if err != nil {
			return conf, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(f, &conf); err != nil {
			return conf, errors.Wrap(err, "unmarshal config file")
		}
	}

	conf.Password = os.Getenv(PasswordEnv)

	if err := conf.IsValid(); err != nil {
		return conf, err
	}
	return conf, nil
}

// ConfigErr collects every problem found in a configuration.
type ConfigErr struct {
	errs []string
}

func (ce *ConfigErr) Add(s string) {
	ce.errs = append(ce.errs, s)
}

func (ce *ConfigErr) Error() string {
	return "config err: " + strings.Join(ce.errs, ",")
}

func (ce *ConfigErr) IsError() bool {
	return len(ce.errs) > 0
}

// IsValid reports all invalid settings at once.
func (c *Config) IsValid() error {
	ce := &ConfigErr{}
	if c.Port <= 0 || c.Port > 65535 {
		ce.Add("port must be between 1 and 65535")
	}
	if c.FallbackPort < 0 || c.FallbackPort > 65535 {
		ce.Add("fallback_port must be between 0 and 65535")
	}
	switch strings.ToLower(c.TransferMode) {
	case "ascii", "binary":
	default:
		ce.Add("transfer_mode must be ascii or binary")
	}
	if c.Timeout < 0 {
		ce.Add("timeout cannot be negative")
	}
	if c.BufferSize <= 0 {
		ce.Add("buffer_size must be positive")
	}
	if c.RateLimit < 0 {
		ce.Add("rate_limit cannot be negative")
	}
	if c.MaxCascade < 1 {
		ce.Add("max_cascade must be at least 1")
	}
	if _, err := c.Encoding(); err != nil {
		ce.Add(err.Error())
	}
	if _, err := c.Dialer(); err != nil {
		ce.Add(err.Error())
	}
	if ce.IsError() {
		return ce
	}
	return nil
}

// Encoding returns the listing charset, or nil when listings are used as
// received.
func (c *Config) Encoding() (encoding.Encoding, error) {
	switch strings.ToLower(strings.ReplaceAll(c.Charset, "_", "-")) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-15", "latin-9":
		return charmap.ISO8859_15, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "cp437", "ibm437":
		return charmap.CodePage437, nil
	default:
		return nil, errors.Errorf("unsupported charset %q", c.Charset)
	}
}

// Dialer returns the dialer for outgoing connections: direct, or through
// the proxy URL (e.g. socks5://127.0.0.1:1080).
func (c *Config) Dialer() (proxy.Dialer, error) {
	if c.Proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(c.Proxy)
	if err != nil {
		return nil, errors.Wrap(err, "invalid proxy url")
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, errors.Wrap(err, "unsupported proxy")
	}
	return d, nil
}

// Options converts the configuration into session options.
func (c *Config) Options() ([]ftpsh.Option, error) {
	opts := []ftpsh.Option{
		ftpsh.WithPort(c.Port),
		ftpsh.WithFallbackPort(c.FallbackPort),
		ftpsh.WithTimeout(c.Timeout),
		ftpsh.WithBufferSize(c.BufferSize),
		ftpsh.WithLocalDir(c.LocalDir),
		ftpsh.WithMaxCascade(c.MaxCascade),
		ftpsh.WithRateLimit(c.RateLimit),
	}
	if !c.Passive {
		opts = append(opts, ftpsh.WithActiveMode())
	}
	if strings.EqualFold(c.TransferMode, "ascii") {
		opts = append(opts, ftpsh.WithTransferMode(ftpsh.ASCII))
	}
	if c.Debug {
		opts = append(opts, ftpsh.WithDebug())
	}

	enc, err := c.Encoding()
	if err != nil {
		return nil, err
	}
	if enc != nil {
		opts = append(opts, ftpsh.WithCharset(enc))
	}

	d, err := c.Dialer()
	if err != nil {
		return nil, err
	}
	if d != nil {
		opts = append(opts, ftpsh.WithDialer(d))
	}
	return opts, nil
}
