// Package config resolves the store connection and lock tuning from
// defaults, an optional config file and RSTORE_* environment variables.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/mirkobrombin/go-rstore/v1/lock"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "rstore"

// Config describes how to reach the store.
type Config struct {
	Host        string
	Port        int
	DB          int
	Username    string
	Password    string
	PoolSize    int
	DialTimeout time.Duration
	Lock        LockConfig
}

// LockConfig tunes lock.Queue.
type LockConfig struct {
	MaxHold         time.Duration
	PollInterval    time.Duration
	EvictionBackoff time.Duration
}

// Default returns a local, unauthenticated configuration.
func Default() Config {
	return Config{
		Host:        "localhost",
		Port:        6379,
		DialTimeout: 5 * time.Second,
		Lock: LockConfig{
			MaxHold:         lock.DefaultMaxHold,
			PollInterval:    lock.DefaultPollInterval,
			EvictionBackoff: lock.DefaultEvictionBackoff,
		},
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewClient returns a client for the configured store.
func (c Config) NewClient() redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:       []string{c.Addr()},
		DB:          c.DB,
		Username:    c.Username,
		Password:    c.Password,
		PoolSize:    c.PoolSize,
		DialTimeout: c.DialTimeout,
	})
}

// LockOptions converts the lock tuning to queue options.
func (c Config) LockOptions() []lock.Option {
	return []lock.Option{
		lock.WithMaxHold(c.Lock.MaxHold),
		lock.WithPollInterval(c.Lock.PollInterval),
		lock.WithEvictionBackoff(c.Lock.EvictionBackoff),
	}
}

// LoadEnvFiles loads dotenv files into the process environment, skipping
// missing ones. Variables already set win.
func LoadEnvFiles(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// NewViper returns a viper instance carrying the defaults and bound to the
// RSTORE_* environment. Dotted and dashed keys map to underscores, so
// lock.max-hold is read from RSTORE_LOCK_MAX_HOLD.
func NewViper() *viper.Viper {
	d := Default()
	v := viper.New()
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("db", d.DB)
	v.SetDefault("username", d.Username)
	v.SetDefault("password", d.Password)
	v.SetDefault("pool-size", d.PoolSize)
	v.SetDefault("dial-timeout", d.DialTimeout)
	v.SetDefault("lock.max-hold", d.Lock.MaxHold)
	v.SetDefault("lock.poll-interval", d.Lock.PollInterval)
	v.SetDefault("lock.eviction-backoff", d.Lock.EvictionBackoff)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper reads a Config out of v.
func FromViper(v *viper.Viper) (Config, error) {
	c := Config{
		Host:        v.GetString("host"),
		Port:        v.GetInt("port"),
		DB:          v.GetInt("db"),
		Username:    v.GetString("username"),
		Password:    v.GetString("password"),
		PoolSize:    v.GetInt("pool-size"),
		DialTimeout: v.GetDuration("dial-timeout"),
		Lock: LockConfig{
			MaxHold:         v.GetDuration("lock.max-hold"),
			PollInterval:    v.GetDuration("lock.poll-interval"),
			EvictionBackoff: v.GetDuration("lock.eviction-backoff"),
		},
	}
	if c.Host == "" {
		return c, fmt.Errorf("config: host is empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return c, fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.DB < 0 {
		return c, fmt.Errorf("config: invalid db %d", c.DB)
	}
	return c, nil
}

// Load resolves a Config. When path is not empty the file is read first;
// environment variables override it.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return FromViper(v)
}
