package main

import (
	"flag"

	"PClient/global/config"
	"PClient/logger"
	"PClient/service/chatd"

	"github.com/google/uuid"
)

func main() {
	config.ConfigAll()
	port := flag.Int("port", config.Global.Port, "listen port")
	redisAddr := flag.String("redis", config.Global.RedisAddr, "redis addr for the presence mirror (empty disables)")
	flag.Parse()
	defer logger.Sync()

	var mirror *chatd.PresenceMirror
	if *redisAddr != "" {
		m, err := chatd.NewPresenceMirror(chatd.PresenceConfig{
			Addr:       *redisAddr,
			Password:   config.Global.RedisPass,
			DB:         config.Global.RedisDB,
			InstanceID: "chatd-" + uuid.NewString()[:8],
		})
		if err != nil {
			logger.Warnf("[chatd] presence mirror disabled: %v", err)
		} else {
			mirror = m
			defer func() { _ = mirror.Close() }()
		}
	}

	srv := chatd.NewServer(chatd.NewHub(mirror))
	logger.Infof("[chatd] listening on :%d", *port)
	if err := srv.Run(*port); err != nil {
		logger.Errorf("[chatd] server exited: %v", err)
	}
}
