// Package config loads pool-tuning and connect-default parameters for
// embedding apps and test harnesses, generalizing the teacher's
// tenant-config YAML loader (env-var substitution + fsnotify
// hot-reload) to this driver core's connection/pool parameters. This
// core does not parse tnsnames.ora/sqlnet.ora (out of scope); callers
// supply the connect descriptor directly.
package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for an embedding application.
type Config struct {
	Connect ConnectDefaults        `yaml:"connect"`
	Pool    PoolDefaults           `yaml:"pool"`
	Pools   map[string]PoolConfig  `yaml:"pools"`
}

// ConnectDefaults holds the connect-time parameters applied when a
// named PoolConfig doesn't override them: service name, auth mode,
// DRCP purity, program/terminal identity (§6 connect() params).
type ConnectDefaults struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ServiceName string `yaml:"service_name"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Mode        string `yaml:"mode"`   // DEFAULT, SYSDBA, SYSOPER, ...
	Purity      string `yaml:"purity"` // DEFAULT, NEW, SELF
	Program     string `yaml:"program"`
	Terminal    string `yaml:"terminal"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// PoolDefaults defines default pool tuning applied when a named
// PoolConfig doesn't override them (§6 create_pool params).
type PoolDefaults struct {
	Min            int           `yaml:"min"`
	Max            int           `yaml:"max"`
	Increment      int           `yaml:"increment"`
	GetMode        string        `yaml:"getmode"` // WAIT, NOWAIT, FORCEGET, TIMEDWAIT
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxLifetime    time.Duration `yaml:"max_lifetime"`
	Homogeneous    bool          `yaml:"homogeneous"`
	StmtCacheSize  int           `yaml:"stmtcachesize"`
}

// PoolConfig holds the connect+pool configuration for one named pool,
// each field overridable against the shared defaults.
type PoolConfig struct {
	Host           string         `yaml:"host"`
	Port           int            `yaml:"port"`
	ServiceName    string         `yaml:"service_name"`
	Username       string         `yaml:"username"`
	Password       string         `yaml:"password"`
	Min            *int           `yaml:"min,omitempty"`
	Max            *int           `yaml:"max,omitempty"`
	Increment      *int           `yaml:"increment,omitempty"`
	GetMode        string         `yaml:"getmode,omitempty"`
	AcquireTimeout *time.Duration `yaml:"acquire_timeout,omitempty"`
	PingInterval   *time.Duration `yaml:"ping_interval,omitempty"`
	MaxLifetime    *time.Duration `yaml:"max_lifetime,omitempty"`
	StmtCacheSize  *int           `yaml:"stmtcachesize,omitempty"`
}

// EffectiveMin returns the pool's min or the shared default.
func (p PoolConfig) EffectiveMin(d PoolDefaults) int {
	if p.Min != nil {
		return *p.Min
	}
	return d.Min
}

// EffectiveMax returns the pool's max or the shared default.
func (p PoolConfig) EffectiveMax(d PoolDefaults) int {
	if p.Max != nil {
		return *p.Max
	}
	return d.Max
}

// EffectiveIncrement returns the pool's increment or the shared default.
func (p PoolConfig) EffectiveIncrement(d PoolDefaults) int {
	if p.Increment != nil {
		return *p.Increment
	}
	return d.Increment
}

// EffectiveAcquireTimeout returns the pool's acquire timeout or the
// shared default.
func (p PoolConfig) EffectiveAcquireTimeout(d PoolDefaults) time.Duration {
	if p.AcquireTimeout != nil {
		return *p.AcquireTimeout
	}
	return d.AcquireTimeout
}

// EffectivePingInterval returns the pool's ping interval or the shared
// default.
func (p PoolConfig) EffectivePingInterval(d PoolDefaults) time.Duration {
	if p.PingInterval != nil {
		return *p.PingInterval
	}
	return d.PingInterval
}

// EffectiveMaxLifetime returns the pool's max lifetime or the shared
// default.
func (p PoolConfig) EffectiveMaxLifetime(d PoolDefaults) time.Duration {
	if p.MaxLifetime != nil {
		return *p.MaxLifetime
	}
	return d.MaxLifetime
}

// EffectiveGetMode returns the pool's getmode string or the shared
// default; callers map the string to pool.GetMode.
func (p PoolConfig) EffectiveGetMode(d PoolDefaults) string {
	if p.GetMode != "" {
		return p.GetMode
	}
	return d.GetMode
}

// Redacted returns a copy of the PoolConfig with the password masked.
func (p PoolConfig) Redacted() PoolConfig {
	c := p
	if c.Password != "" {
		c.Password = "***REDACTED***"
	}
	return c
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment
// variable values.
func substituteEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		if val, ok := os.LookupEnv(string(varName)); ok {
			return []byte(val)
		}
		return match
	})
}

// Load reads and parses a YAML config file with ${VAR} env-var
// substitution.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	data = substituteEnvVars(data)

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Pool.Min == 0 {
		cfg.Pool.Min = 1
	}
	if cfg.Pool.Max == 0 {
		cfg.Pool.Max = 10
	}
	if cfg.Pool.Increment == 0 {
		cfg.Pool.Increment = 1
	}
	if cfg.Pool.GetMode == "" {
		cfg.Pool.GetMode = "WAIT"
	}
	if cfg.Pool.AcquireTimeout == 0 {
		cfg.Pool.AcquireTimeout = 30 * time.Second
	}
	if cfg.Pool.PingInterval == 0 {
		cfg.Pool.PingInterval = 60 * time.Second
	}
	if cfg.Pool.MaxLifetime == 0 {
		cfg.Pool.MaxLifetime = 1 * time.Hour
	}
	if cfg.Connect.Mode == "" {
		cfg.Connect.Mode = "DEFAULT"
	}
	if cfg.Connect.Purity == "" {
		cfg.Connect.Purity = "DEFAULT"
	}
	if cfg.Connect.DialTimeout == 0 {
		cfg.Connect.DialTimeout = 10 * time.Second
	}
}

func validate(cfg *Config) error {
	for id, p := range cfg.Pools {
		host := p.Host
		if host == "" {
			host = cfg.Connect.Host
		}
		if host == "" {
			return fmt.Errorf("pool %q: host is required", id)
		}
		port := p.Port
		if port == 0 {
			port = cfg.Connect.Port
		}
		if port == 0 {
			return fmt.Errorf("pool %q: port is required", id)
		}
		username := p.Username
		if username == "" {
			username = cfg.Connect.Username
		}
		if username == "" {
			return fmt.Errorf("pool %q: username is required", id)
		}
		switch p.EffectiveGetMode(cfg.Pool) {
		case "WAIT", "NOWAIT", "FORCEGET", "TIMEDWAIT":
		default:
			return fmt.Errorf("pool %q: unsupported getmode %q", id, p.GetMode)
		}
	}
	return nil
}

// Watcher watches a config file for changes and calls the callback
// with the newly reloaded config.
type Watcher struct {
	path     string
	callback func(*Config)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	stopCh   chan struct{}
}

// NewWatcher creates a new config file watcher.
func NewWatcher(path string, callback func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := w.Add(path); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching config file: %w", err)
	}

	cw := &Watcher{
		path:    path,
		callback: callback,
		watcher: w,
		stopCh:  make(chan struct{}),
	}

	go cw.run()
	return cw, nil
}

func (cw *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(500*time.Millisecond, func() {
					cw.reload()
				})
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[config] watcher error: %v", err)
		case <-cw.stopCh:
			return
		}
	}
}

func (cw *Watcher) reload() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		log.Printf("[config] hot-reload failed: %v", err)
		return
	}

	log.Printf("[config] configuration reloaded from %s", cw.path)
	cw.callback(cfg)
}

// Stop stops the config watcher.
func (cw *Watcher) Stop() error {
	close(cw.stopCh)
	return cw.watcher.Close()
}
