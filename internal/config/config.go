package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/LivePodcast/internal/adapters/signal"
	"github.com/dkeye/LivePodcast/internal/archive"
	"github.com/dkeye/LivePodcast/internal/recording"
	"github.com/dkeye/LivePodcast/internal/telemetry"
)

type TLS struct {
	KeyFile  string `mapstructure:"key_file"`
	CertFile string `mapstructure:"cert_file"`
}

func (t TLS) Enabled() bool { return t.KeyFile != "" && t.CertFile != "" }

type CORS struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type Relay struct {
	SlowListener string `mapstructure:"slow_listener"`
}

type Archive struct {
	Enabled bool             `mapstructure:"enabled"`
	Queue   int              `mapstructure:"queue"`
	Timeout time.Duration    `mapstructure:"timeout"`
	S3      archive.S3Config `mapstructure:"s3"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type Config struct {
	Mode            string           `mapstructure:"mode"`
	Port            int              `mapstructure:"port"`
	ServeStatic     bool             `mapstructure:"serve_static"`
	StaticPath      string           `mapstructure:"static_path"`
	Secret          string           `mapstructure:"secret"`
	ShutdownTimeout time.Duration    `mapstructure:"shutdown_timeout"`
	TLS             TLS              `mapstructure:"tls"`
	CORS            CORS             `mapstructure:"cors"`
	WS              signal.Config    `mapstructure:"ws"`
	Relay           Relay            `mapstructure:"relay"`
	Recording       recording.Config `mapstructure:"recording"`
	Archive         Archive          `mapstructure:"archive"`
	Telemetry       telemetry.Config `mapstructure:"telemetry"`
	Log             Log              `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 9200)
	v.SetDefault("serve_static", false)
	v.SetDefault("static_path", "./static")
	v.SetDefault("secret", "change-me")
	v.SetDefault("shutdown_timeout", "15s")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("cors.allow_origins", []string{"*"})

	v.SetDefault("ws.read_limit", 1<<20)
	v.SetDefault("ws.send_buffer", 256)
	v.SetDefault("ws.ping_period", "54s")
	v.SetDefault("ws.write_timeout", "5s")

	v.SetDefault("relay.slow_listener", "drop")

	v.SetDefault("recording.dir", "./recordings")
	v.SetDefault("recording.ffmpeg_path", "ffmpeg")
	v.SetDefault("recording.queue_size", 512)
	v.SetDefault("recording.finalize_timeout", "10s")

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.queue", 64)
	v.SetDefault("archive.timeout", "5m")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.prefix", "recordings")
	v.SetDefault("archive.s3.access_key_id", "")
	v.SetDefault("archive.s3.secret_access_key", "")
	v.SetDefault("archive.s3.use_path_style", false)

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.sampling_rate", 1.0)
	v.SetDefault("telemetry.metrics_enabled", false)
	v.SetDefault("telemetry.metrics_export_interval", "30s")
	v.SetDefault("telemetry.go_metrics_enabled", false)
	v.SetDefault("telemetry.service_name", "live-podcast")
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Path is the config file selected by CONFIG_ENV (default dev).
func Path() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return fmt.Sprintf("config/config.%s.yaml", env)
}

// Load reads Path() on top of the defaults. Environment variables override both:
// RECORDING_DIR, WS_PING_PERIOD, ... plus the legacy PORT, SSL_KEY and SSL_CERT.
func Load() (*Config, error) {
	return LoadFile(Path())
}

func newViper(fileName string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("tls.key_file", "TLS_KEY_FILE", "SSL_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("tls.cert_file", "TLS_CERT_FILE", "SSL_CERT"); err != nil {
		return nil, err
	}
	setDefaults(v)
	return v, nil
}

func LoadFile(fileName string) (*Config, error) {
	v, err := newViper(fileName)
	if err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Bool("tls", cfg.TLS.Enabled()).
		Str("recordings", cfg.Recording.Dir).
		Msg("config ready")
	return &cfg, nil
}

// Watch calls onChange with the reparsed config whenever fileName is written.
// Only settings read at runtime (log level) take effect without a restart.
func Watch(fileName string, onChange func(*Config)) error {
	v, err := newViper(fileName)
	if err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch %s: %w", fileName, err)
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			log.Error().Err(err).Str("module", "config").Str("file", e.Name).Msg("reload failed")
			return
		}
		log.Info().Str("module", "config").Str("file", e.Name).Str("op", e.Op.String()).Msg("config changed")
		onChange(&cfg)
	})
	v.WatchConfig()
	return nil
}
