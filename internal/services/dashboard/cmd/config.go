package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/broker"
)

type Config struct {
	MQTT broker.Config

	HTTPPort  int
	GRPCPort  int
	VoiceLang string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	LogLevel  string
	LogPretty bool
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	return time.Duration(envInt(key, int(def.Milliseconds()))) * time.Millisecond
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// loadConfig reads the environment, after an optional .env file.
func loadConfig() Config {
	_ = godotenv.Load()

	return Config{
		MQTT: broker.Config{
			BrokerURL:         env("MQTT_BROKER_URL", broker.DefaultBrokerURL),
			ClientID:          env("MQTT_CLIENT_ID", "irrigation-dashboard-"+uuid.NewString()[:8]),
			User:              env("MQTT_USER", ""),
			Password:          env("MQTT_PASSWORD", ""),
			KeepAlive:         time.Duration(envInt("MQTT_KEEPALIVE_S", 60)) * time.Second,
			ReconnectInterval: envMillis("MQTT_RECONNECT_MS", broker.DefaultReconnectInterval),
			BreakerFailures:   envInt("PUBLISH_BREAKER_FAILS", 5),
			BreakerOpenFor:    envMillis("PUBLISH_BREAKER_OPEN_MS", 10*time.Second),
		},

		HTTPPort:  envInt("HTTP_PORT", 8080),
		GRPCPort:  envInt("GRPC_PORT", 0),
		VoiceLang: env("VOICE_LANG", "en-US"),

		InfluxURL:    env("INFLUX_URL", ""),
		InfluxToken:  env("INFLUX_TOKEN", ""),
		InfluxOrg:    env("INFLUX_ORG", "smart-irrigation"),
		InfluxBucket: env("INFLUX_BUCKET", "dashboard"),

		LogLevel:  env("LOG_LEVEL", "info"),
		LogPretty: envBool("LOG_PRETTY", false),
	}
}
