package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,required"`
	StoragePath  string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	DeveloperID  string `env:"DEVELOPER_ID"`

	// Task engine cadence. The defaults are the reference values; all of
	// them are overridable without a rebuild.
	SweepInterval      time.Duration `env:"TASK_SWEEP_INTERVAL" envDefault:"10s"`
	TaskRetention      time.Duration `env:"TASK_RETENTION" envDefault:"24h"`
	SchedulerRetention time.Duration `env:"SCHEDULER_RETENTION" envDefault:"60s"`

	// Outbound moderation API budget, requests per second.
	ModerationRPS float64 `env:"MODERATION_RPS" envDefault:"5"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("[ERR] Failed to parse configuration: %v", err)
	}
	return cfg
}
