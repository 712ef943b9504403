package config

import "github.com/spf13/viper"

type Config struct {
	AppMode string `mapstructure:"APP_MODE"`
	Port    string `mapstructure:"PORT"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`

	RedisAddr string `mapstructure:"REDIS_ADDR"`

	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	AllowedOrigins  string `mapstructure:"ALLOWED_ORIGINS"`

	// Процент просмотра, после которого урок считается пройденным.
	CompletionThreshold float64 `mapstructure:"COMPLETION_THRESHOLD"`

	// Heartbeat'ов в минуту на пользователя (0 = без лимита).
	HeartbeatRateLimit int `mapstructure:"HEARTBEAT_RATE_LIMIT"`
}

func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("app")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("APP_MODE", "dev")
	viper.SetDefault("PORT", ":8080")
	viper.SetDefault("COMPLETION_THRESHOLD", 90)
	viper.SetDefault("HEARTBEAT_RATE_LIMIT", 30)

	viper.BindEnv("APP_MODE")
	viper.BindEnv("PORT")
	viper.BindEnv("DB_HOST")
	viper.BindEnv("DB_PORT")
	viper.BindEnv("DB_USER")
	viper.BindEnv("DB_PASSWORD")
	viper.BindEnv("DB_NAME")
	viper.BindEnv("REDIS_ADDR")
	viper.BindEnv("JWT_ACCESS_SECRET")
	viper.BindEnv("ALLOWED_ORIGINS")
	viper.BindEnv("COMPLETION_THRESHOLD")
	viper.BindEnv("HEARTBEAT_RATE_LIMIT")

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}
	err = viper.Unmarshal(&config)
	return
}
