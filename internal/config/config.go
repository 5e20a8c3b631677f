package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig holds the runtime configuration, resolved from a .env file
// and process environment.
type AppConfig struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	ServerPort string

	NotificationsEnabled bool
	GatewayURL           string
	ReminderSchedule     string
}

// Load reads configuration from .env (when present) and the environment.
// Every key has a development default so a bare checkout still runs.
func Load() (AppConfig, error) {
	// Missing .env is fine, the environment still applies.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mwheba")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("NOTIFICATIONS_ENABLED", true)
	v.SetDefault("WHATSAPP_GATEWAY_URL", "https://api.callmebot.com/whatsapp.php")
	v.SetDefault("REMINDER_SCHEDULE", "0 9 * * *")

	cfg := AppConfig{
		DBHost:               v.GetString("DB_HOST"),
		DBPort:               v.GetString("DB_PORT"),
		DBUser:               v.GetString("DB_USER"),
		DBPassword:           v.GetString("DB_PASSWORD"),
		DBName:               v.GetString("DB_NAME"),
		ServerPort:           v.GetString("SERVER_PORT"),
		NotificationsEnabled: v.GetBool("NOTIFICATIONS_ENABLED"),
		GatewayURL:           v.GetString("WHATSAPP_GATEWAY_URL"),
		ReminderSchedule:     v.GetString("REMINDER_SCHEDULE"),
	}
	return cfg, nil
}

// ConnStr builds the Postgres connection string.
func (c AppConfig) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}
