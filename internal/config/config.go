// Package config loads and hot-reloads monocanvas server configuration.
//
// It follows the fawa pattern: pflag-bound defaults, viper for layered
// config-file/env/flag resolution, and fsnotify-driven reload of the
// backing file without a process restart.
package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/fawa-io/monocanvas/internal/fwlog"
)

// Config holds every recognized monocanvas option (spec.md §6.4).
type Config struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	LogLevel string `mapstructure:"logLevel"`

	WorkspaceRoot     string  `mapstructure:"workspaceRoot"`
	MaxWorkspaceBytes int64   `mapstructure:"maxWorkspaceBytes"`
	MaxPendingStrokes int     `mapstructure:"maxPendingStrokes"`
	MaxConnsPerUser   int     `mapstructure:"maxConnectionsPerUser"`
	MaxStrokesPerMin  int     `mapstructure:"maxStrokesPerMinute"`
	PathStepsPerUnit  float64 `mapstructure:"pathStepsPerUnit"`
	ClientFPS         float64 `mapstructure:"clientFps"`
	AnimWaitBufferMS  float64 `mapstructure:"animationWaitBufferMs"`
	MaxAnimWaitS      float64 `mapstructure:"maxAnimationWaitS"`
	AgentIntervalS    float64 `mapstructure:"agentIntervalS"`
	IdleGracePeriodS  float64 `mapstructure:"idleGracePeriodS"`
	PythonTimeoutS    float64 `mapstructure:"pythonTimeoutS"`
	ImageGenTimeoutS  float64 `mapstructure:"imageGenTimeoutS"`
	CanvasWidth       int     `mapstructure:"canvasWidth"`
	CanvasHeight      int     `mapstructure:"canvasHeight"`

	RateLimitBackend string `mapstructure:"rateLimitBackend"` // "memory" | "redis"
	RedisAddr        string `mapstructure:"redisAddr"`

	BlobstoreBackend string `mapstructure:"blobstoreBackend"` // "fs" | "minio"
	MinioEndpoint    string `mapstructure:"minioEndpoint"`
	MinioAccessKey   string `mapstructure:"minioAccessKey"`
	MinioSecretKey   string `mapstructure:"minioSecretKey"`
	MinioBucket      string `mapstructure:"minioBucket"`
	MinioUseSSL      bool   `mapstructure:"minioUseSsl"`

	AnthropicAPIKey string `mapstructure:"anthropicApiKey"`
	AnthropicModel  string `mapstructure:"anthropicModel"`

	ImageGenEndpoint string `mapstructure:"imageGenEndpoint"`
	ImageGenAPIKey   string `mapstructure:"imageGenApiKey"`

	PublicBaseURL string `mapstructure:"publicBaseUrl"`

	CORSAllowedOrigins []string `mapstructure:"corsAllowedOrigins"`
}

// AgentInterval returns the loop safety-net period as a time.Duration.
func (c Config) AgentInterval() time.Duration {
	return time.Duration(c.AgentIntervalS * float64(time.Second))
}

// IdleGracePeriod returns the workspace deactivation grace period.
func (c Config) IdleGracePeriod() time.Duration {
	return time.Duration(c.IdleGracePeriodS * float64(time.Second))
}

var (
	once sync.Once
	mu   sync.RWMutex
	cfg  Config
)

// defaults mirrors the values a fresh deployment should boot with absent
// any config file or flags.
func setDefaults() {
	viper.SetDefault("addr", ":8443")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("workspaceRoot", "./data/workspaces")
	viper.SetDefault("maxWorkspaceBytes", int64(8*1024*1024))
	viper.SetDefault("maxPendingStrokes", 500)
	viper.SetDefault("maxConnectionsPerUser", 4)
	viper.SetDefault("maxStrokesPerMinute", 60)
	viper.SetDefault("pathStepsPerUnit", 0.5)
	viper.SetDefault("clientFps", 60.0)
	viper.SetDefault("animationWaitBufferMs", 200.0)
	viper.SetDefault("maxAnimationWaitS", 8.0)
	viper.SetDefault("agentIntervalS", 5.0)
	viper.SetDefault("idleGracePeriodS", 300.0)
	viper.SetDefault("pythonTimeoutS", 10.0)
	viper.SetDefault("imageGenTimeoutS", 30.0)
	viper.SetDefault("canvasWidth", 800)
	viper.SetDefault("canvasHeight", 600)
	viper.SetDefault("rateLimitBackend", "memory")
	viper.SetDefault("blobstoreBackend", "fs")
	viper.SetDefault("minioBucket", "monocanvas")
	viper.SetDefault("anthropicModel", "claude-sonnet-4-5")
	viper.SetDefault("corsAllowedOrigins", []string{"*"})
}

// InitConfig loads configuration exactly once per process and starts
// watching the backing file for changes.
func InitConfig() error {
	var initErr error
	once.Do(func() {
		initErr = LoadAndWatch()
	})
	return initErr
}

// Get returns a snapshot of the current configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// LoadAndWatch binds flags, reads config.yaml (if present), and registers
// a hot-reload callback.
func LoadAndWatch() error {
	setDefaults()

	pflag.String("addr", "", "HTTP/3 + HTTPS listen address")
	pflag.String("certFile", "", "Path to the TLS certificate file.")
	pflag.String("keyFile", "", "Path to the TLS private key file.")
	pflag.String("logLevel", "", "debug|info|warn|error|fatal")
	pflag.String("workspaceRoot", "", "Base directory for per-user workspace state")
	if !pflag.Parsed() {
		pflag.Parse()
	}

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return fmt.Errorf("failed to bind pflags: %w", err)
	}

	viper.SetEnvPrefix("monocanvas")
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/monocanvas/")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			fwlog.Infof("config file not found, using defaults and flags/env")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}

	if err := reload(); err != nil {
		return err
	}

	viper.OnConfigChange(func(e fsnotify.Event) {
		fwlog.Infof("config file changed: %s, reloading", e.Name)
		if err := reload(); err != nil {
			fwlog.Errorf("error reloading configuration: %v", err)
		} else {
			fwlog.Infof("configuration reloaded")
		}
	})
	viper.WatchConfig()

	return nil
}

func reload() error {
	mu.Lock()
	defer mu.Unlock()
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("configuration cannot be decoded into struct: %w", err)
	}
	return nil
}
