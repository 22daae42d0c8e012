package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode            string        `mapstructure:"mode"`
	Port            int           `mapstructure:"port"`
	DBPath          string        `mapstructure:"db_path"`
	Secret          string        `mapstructure:"secret"`
	AdminUser       string        `mapstructure:"admin_user"`
	AdminPass       string        `mapstructure:"admin_pass"`
	MaxParticipants int           `mapstructure:"max_participants"`
	RoomMaxAge      time.Duration `mapstructure:"room_max_age"`
	HistoryLimit    int           `mapstructure:"history_limit"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
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
	v.SetDefault("port", 9080)
	v.SetDefault("db_path", "./beacon.db")
	v.SetDefault("secret", "change-me")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_pass", "")
	v.SetDefault("max_participants", 3)
	v.SetDefault("room_max_age", "24h")
	v.SetDefault("history_limit", 100)
	v.SetDefault("send_buffer", 32)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("write_timeout", "5s")
	v.SetDefault("ping_period", "54s")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
