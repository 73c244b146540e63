package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type MediaConfig struct {
	// Synthetic replaces microphone capture with a generated tone source.
	// Used on platforms without capture drivers and in development.
	Synthetic  bool `mapstructure:"synthetic"`
	SampleRate int  `mapstructure:"sample_rate"`
	Channels   int  `mapstructure:"channels"`
}

type ActivityConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Threshold float64       `mapstructure:"threshold"`
}

type Config struct {
	Mode string `mapstructure:"mode"`
	// Port of the local control API consumed by the UI layer.
	Port int `mapstructure:"port"`
	// APIBaseURL is the social-network REST backend (profiles, rooms, tokens).
	APIBaseURL string `mapstructure:"api_base_url"`
	// SignalURL is the relay websocket base, e.g. wss://host/ws/voice.
	SignalURL string `mapstructure:"signal_url"`
	// RefreshToken is the long-lived credential exchanged for short-lived
	// access tokens before every channel open.
	RefreshToken string         `mapstructure:"refresh_token"`
	StunServers  []string       `mapstructure:"stun_servers"`
	Media        MediaConfig    `mapstructure:"media"`
	Activity     ActivityConfig `mapstructure:"activity"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("api_base_url", "http://localhost:8000/api")
	v.SetDefault("signal_url", "ws://localhost:8000/ws/voice")
	v.SetDefault("stun_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("media.synthetic", false)
	v.SetDefault("media.sample_rate", 48000)
	v.SetDefault("media.channels", 1)
	v.SetDefault("activity.interval", "50ms")
	v.SetDefault("activity.threshold", 0.12)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
