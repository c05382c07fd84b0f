package config

import (
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the settings the booking engine resolves once at startup.
// The platform account is the rental operator's wallet: it receives booking
// payments and funds refunds. Resolving it here replaces the original
// per-request "find the admin user" lookup.
type AppConfig struct {
	ServerPort        string
	PlatformAccountID string
	StorageTimeout    time.Duration
	StaticDir         string
	VoucherTTL        time.Duration
}

// Load reads the .env file and environment and returns the app config.
func Load() *AppConfig {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("platform.account_id", "PLATFORM_ACCOUNT_ID")
	viper.BindEnv("storage.timeout", "STORAGE_TIMEOUT")
	viper.BindEnv("static.dir", "STATIC_DIR")
	viper.BindEnv("voucher.ttl", "VOUCHER_TTL")
	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.SetDefault("server.port", "8080")
	viper.SetDefault("platform.account_id", "platform")
	viper.SetDefault("storage.timeout", 5*time.Second)
	viper.SetDefault("static.dir", "./web/dist")
	viper.SetDefault("voucher.ttl", 24*time.Hour)

	return &AppConfig{
		ServerPort:        viper.GetString("server.port"),
		PlatformAccountID: viper.GetString("platform.account_id"),
		StorageTimeout:    viper.GetDuration("storage.timeout"),
		StaticDir:         viper.GetString("static.dir"),
		VoucherTTL:        viper.GetDuration("voucher.ttl"),
	}
}
