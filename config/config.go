package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // TIME_ZONE must resolve on hosts without a zoneinfo database

	"github.com/caarlos0/env/v11"
)

// Config holds the relay configuration, read from the environment.
type Config struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	CORSAllowedOrigins string        `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5500,http://127.0.0.1:5500"`
	PublicDir          string        `env:"PUBLIC_DIR" envDefault:"public"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	LogFormat          string        `env:"LOG_FORMAT" envDefault:"text"`

	AdminName   string `env:"ADMIN_NAME" envDefault:"Admin"`
	WelcomeText string `env:"WELCOME_TEXT" envDefault:"Bienvenue dans la chambre du chapeau de paille"`
	TimeZone    string `env:"TIME_ZONE" envDefault:"UTC"`
	TimeLayout  string `env:"TIME_LAYOUT" envDefault:"15:04:05"`

	EventQueueSize   int           `env:"EVENT_QUEUE_SIZE" envDefault:"256"`
	ClientSendBuffer int           `env:"CLIENT_SEND_BUFFER" envDefault:"64"`
	PingInterval     time.Duration `env:"PING_INTERVAL" envDefault:"20s"`

	MaxNameLength int `env:"MAX_NAME_LENGTH" envDefault:"50"`
	MaxRoomLength int `env:"MAX_ROOM_LENGTH" envDefault:"100"`
	MaxTextLength int `env:"MAX_TEXT_LENGTH" envDefault:"4096"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.EventQueueSize <= 0 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be positive, got %d", c.EventQueueSize)
	}
	if c.ClientSendBuffer <= 0 {
		return fmt.Errorf("CLIENT_SEND_BUFFER must be positive, got %d", c.ClientSendBuffer)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("PING_INTERVAL must be positive, got %s", c.PingInterval)
	}
	if c.MaxNameLength <= 0 {
		return fmt.Errorf("MAX_NAME_LENGTH must be positive, got %d", c.MaxNameLength)
	}
	if c.MaxRoomLength <= 0 {
		return fmt.Errorf("MAX_ROOM_LENGTH must be positive, got %d", c.MaxRoomLength)
	}
	if c.MaxTextLength <= 0 {
		return fmt.Errorf("MAX_TEXT_LENGTH must be positive, got %d", c.MaxTextLength)
	}
	if c.TimeLayout == "" {
		return fmt.Errorf("TIME_LAYOUT is required")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TimeZone. Every chat timestamp is rendered in it.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
