package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Session   SessionConfig
	Relay     RelayConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type SessionConfig struct {
	GracePeriod    time.Duration
	StaleThreshold time.Duration
	SweepInterval  time.Duration
}

type RelayConfig struct {
	InputMinInterval    time.Duration
	PositionMinInterval time.Duration
	WorldWidth          float64
	WorldHeight         float64
	PlayerWidth         float64
	MaxVelX             float64
	MaxVelY             float64
}

type WebSocketConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	IdleTimeout    time.Duration
	MaxMessageSize int64
}

// Load reads configuration from an optional config.yaml plus EDUO_*
// environment variables, falling back to defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("EDUO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetInt("server.port"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
		},
		Session: SessionConfig{
			GracePeriod:    v.GetDuration("session.grace_period"),
			StaleThreshold: v.GetDuration("session.stale_threshold"),
			SweepInterval:  v.GetDuration("session.sweep_interval"),
		},
		Relay: RelayConfig{
			InputMinInterval:    v.GetDuration("relay.input_min_interval"),
			PositionMinInterval: v.GetDuration("relay.position_min_interval"),
			WorldWidth:          v.GetFloat64("relay.world_width"),
			WorldHeight:         v.GetFloat64("relay.world_height"),
			PlayerWidth:         v.GetFloat64("relay.player_width"),
			MaxVelX:             v.GetFloat64("relay.max_vel_x"),
			MaxVelY:             v.GetFloat64("relay.max_vel_y"),
		},
		WebSocket: WebSocketConfig{
			WriteWait:      v.GetDuration("websocket.write_wait"),
			PongWait:       v.GetDuration("websocket.pong_wait"),
			IdleTimeout:    v.GetDuration("websocket.idle_timeout"),
			MaxMessageSize: v.GetInt64("websocket.max_message_size"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")

	v.SetDefault("session.grace_period", "5s")
	v.SetDefault("session.stale_threshold", "10m")
	v.SetDefault("session.sweep_interval", "5m")

	v.SetDefault("relay.input_min_interval", "50ms")
	v.SetDefault("relay.position_min_interval", "67ms")
	v.SetDefault("relay.world_width", 1000.0)
	v.SetDefault("relay.world_height", 600.0)
	v.SetDefault("relay.player_width", 28.0)
	v.SetDefault("relay.max_vel_x", 12.0)
	v.SetDefault("relay.max_vel_y", 20.0)

	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.idle_timeout", "5m")
	v.SetDefault("websocket.max_message_size", 4096)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Relay.PlayerWidth >= c.Relay.WorldWidth {
		return fmt.Errorf("player width %v exceeds world width %v", c.Relay.PlayerWidth, c.Relay.WorldWidth)
	}
	if c.Session.GracePeriod <= 0 || c.Session.SweepInterval <= 0 {
		return errors.New("session timers must be positive")
	}
	return nil
}
