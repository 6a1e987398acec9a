package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ControlAddr string
	ProxyFile   string
	// MetricsAddr is empty when metrics are disabled.
	MetricsAddr string
	LogLevel    string
	LogDev      bool

	Compression   string
	NamePrefix    string
	Origin        string
	UserAgent     string
	TrackOwnCells bool

	HandshakeTimeout time.Duration
	SpawnStagger     time.Duration
}

func Defaults() Config {
	return Config{
		ControlAddr:      ":6969",
		ProxyFile:        "./proxies.txt",
		MetricsAddr:      ":9100",
		LogLevel:         "info",
		Compression:      "flate",
		NamePrefix:       "FreeBots",
		Origin:           "https://agar.io",
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		HandshakeTimeout: 10 * time.Second,
		SpawnStagger:     300 * time.Millisecond,
	}
}

// InitConfig loads env files into the environment. Variables already set are
// not overridden. With no files named it loads ./.env if one exists; a named
// file that cannot be read is an error.
func InitConfig(files ...string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func GetEnvVariable(v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("input param empty")
	}
	b := os.Getenv(v)
	if b == "" {
		return "", fmt.Errorf("failed to get variable for %s", v)
	}

	return b, nil
}

// Load reads the configuration from the environment on top of Defaults.
func Load() (Config, error) {
	c := Defaults()

	str := func(key string, dst *string) {
		if v, err := GetEnvVariable(key); err == nil {
			*dst = v
		}
	}
	str("CONTROL_ADDR", &c.ControlAddr)
	str("PROXY_FILE", &c.ProxyFile)
	str("METRICS_ADDR", &c.MetricsAddr)
	str("LOG_LEVEL", &c.LogLevel)
	str("COMPRESSION", &c.Compression)
	str("NAME_PREFIX", &c.NamePrefix)
	str("ORIGIN", &c.Origin)
	str("USER_AGENT", &c.UserAgent)
	if c.MetricsAddr == "off" {
		c.MetricsAddr = ""
	}

	var errs []error
	boolean := func(key string, dst *bool) {
		v, err := GetEnvVariable(key)
		if err != nil {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}
	duration := func(key string, dst *time.Duration) {
		v, err := GetEnvVariable(key)
		if err != nil {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}
	boolean("LOG_DEV", &c.LogDev)
	boolean("TRACK_OWN_CELLS", &c.TrackOwnCells)
	duration("HANDSHAKE_TIMEOUT", &c.HandshakeTimeout)
	duration("SPAWN_STAGGER", &c.SpawnStagger)

	return c, errors.Join(errs...)
}
