package main

import (
	"strings"
	"testing"
	"time"

	"github.com/emy-mhmd/Smart-Irrigation-System/pkg/broker"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_KEEPALIVE_S", "MQTT_RECONNECT_MS", "HTTP_PORT", "INFLUX_URL"} {
		t.Setenv(k, "")
	}
	cfg := loadConfig()
	if cfg.MQTT.BrokerURL != broker.DefaultBrokerURL {
		t.Errorf("broker = %s", cfg.MQTT.BrokerURL)
	}
	if cfg.MQTT.KeepAlive != 60*time.Second || cfg.MQTT.ReconnectInterval != 5*time.Second {
		t.Errorf("keepalive = %v, reconnect = %v", cfg.MQTT.KeepAlive, cfg.MQTT.ReconnectInterval)
	}
	if !strings.HasPrefix(cfg.MQTT.ClientID, "irrigation-dashboard-") {
		t.Errorf("client id = %s", cfg.MQTT.ClientID)
	}
	if cfg.HTTPPort != 8080 || cfg.InfluxURL != "" {
		t.Errorf("http port = %d, influx = %q", cfg.HTTPPort, cfg.InfluxURL)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("MQTT_BROKER_URL", "tcp://localhost:1883")
	t.Setenv("MQTT_RECONNECT_MS", "250")
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("LOG_PRETTY", "true")
	cfg := loadConfig()
	if cfg.MQTT.BrokerURL != "tcp://localhost:1883" {
		t.Errorf("broker = %s", cfg.MQTT.BrokerURL)
	}
	if cfg.MQTT.ReconnectInterval != 250*time.Millisecond {
		t.Errorf("reconnect = %v", cfg.MQTT.ReconnectInterval)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("invalid port should fall back, got %d", cfg.HTTPPort)
	}
	if !cfg.LogPretty {
		t.Error("LOG_PRETTY not applied")
	}
}
