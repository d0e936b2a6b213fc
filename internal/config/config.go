// Package config provides Viper-based configuration loading for the arena
// server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the websocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP/websocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP/websocket listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read deadline for client connections; zero
	// disables it.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write deadline for client connections; zero
	// disables it.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GameConfig holds gameplay tuning.
type GameConfig struct {
	// MaxPlayers is the room capacity.
	MaxPlayers int `mapstructure:"max_players"`
	// BulletTTL is how long a bullet lives absent a confirmed hit.
	BulletTTL time.Duration `mapstructure:"bullet_ttl"`
	// BulletSpeed is the muzzle speed in units per tick.
	BulletSpeed float64 `mapstructure:"bullet_speed"`
	// BulletDamage is the health subtracted per confirmed hit.
	BulletDamage int `mapstructure:"bullet_damage"`
	// RoomCodeLength is the join code length in characters.
	RoomCodeLength int `mapstructure:"room_code_length"`
	// Respawn box: positions are uniform in [min, max).
	RespawnMinX int `mapstructure:"respawn_min_x"`
	RespawnMaxX int `mapstructure:"respawn_max_x"`
	RespawnMinY int `mapstructure:"respawn_min_y"`
	RespawnMaxY int `mapstructure:"respawn_max_y"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Game    GameConfig    `mapstructure:"game"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadTimeout < 0 {
		errs = append(errs, "server.read_timeout must not be negative")
	}
	if s.WriteTimeout < 0 {
		errs = append(errs, "server.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.MaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("game.max_players must be >= 1, got %d", g.MaxPlayers))
	}
	if g.BulletTTL <= 0 {
		errs = append(errs, "game.bullet_ttl must be positive")
	}
	if g.BulletSpeed <= 0 {
		errs = append(errs, fmt.Sprintf("game.bullet_speed must be positive, got %g", g.BulletSpeed))
	}
	if g.BulletDamage < 1 {
		errs = append(errs, fmt.Sprintf("game.bullet_damage must be >= 1, got %d", g.BulletDamage))
	}
	if g.RoomCodeLength < 1 {
		errs = append(errs, fmt.Sprintf("game.room_code_length must be >= 1, got %d", g.RoomCodeLength))
	}
	if g.RespawnMaxX <= g.RespawnMinX {
		errs = append(errs, "game.respawn_max_x must exceed game.respawn_min_x")
	}
	if g.RespawnMaxY <= g.RespawnMinY {
		errs = append(errs, "game.respawn_max_y must exceed game.respawn_min_y")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment
// variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with ARENA_ prefix
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "5m")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("game.max_players", 4)
	v.SetDefault("game.bullet_ttl", "3s")
	v.SetDefault("game.bullet_speed", 10.0)
	v.SetDefault("game.bullet_damage", 20)
	v.SetDefault("game.room_code_length", 6)
	v.SetDefault("game.respawn_min_x", 100)
	v.SetDefault("game.respawn_max_x", 700)
	v.SetDefault("game.respawn_min_y", 100)
	v.SetDefault("game.respawn_max_y", 500)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
