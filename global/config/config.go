package config

import (
	"os"
	"time"
)

// Transport kinds selectable at startup.
const (
	TransportWS   = "ws"
	TransportNats = "nats"
)

type AppConfig struct {
	Transport   string        // ws | nats
	ServerURL   string        // websocket endpoint
	NatsServers []string      // nats endpoints
	TypingQuiet time.Duration // typing indicator expiry

	Port      int    // chatd http port
	RedisAddr string // chatd presence mirror; "" disables
	RedisDB   int
	RedisPass string
}

var Global = AppConfig{
	Transport:   TransportWS,
	ServerURL:   "ws://127.0.0.1:8080/ws",
	NatsServers: []string{"nats://127.0.0.1:4222"},
	TypingQuiet: 3 * time.Second,
	Port:        8080,
	RedisAddr:   "",
	RedisDB:     0,
	RedisPass:   "password",
}

// ConfigAll applies environment overrides onto the defaults.
func ConfigAll() {
	if v := os.Getenv("CHAT_TRANSPORT"); v != "" {
		Global.Transport = v
	}
	if v := os.Getenv("CHAT_SERVER_URL"); v != "" {
		Global.ServerURL = v
	}
	if v := os.Getenv("CHAT_NATS_URL"); v != "" {
		Global.NatsServers = []string{v}
	}
	if v := os.Getenv("CHAT_REDIS_ADDR"); v != "" {
		Global.RedisAddr = v
	}
}
