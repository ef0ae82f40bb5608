package main

import "time"

const httpShutdownTimeout = 10 * time.Second

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	// Empty disables token verification: the handshake userId parameter is
	// trusted as-is. Only suitable for development.
	HandshakeSecret string `env:"HANDSHAKE_SECRET"`

	SendBufferSize int `env:"SEND_BUFFER_SIZE,default=64"`
	PageLimit      int `env:"PAGE_LIMIT,default=50"`

	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=5s"`
	HealthInterval  time.Duration `env:"HEALTH_INTERVAL,default=15s"`
	StoreGCInterval time.Duration `env:"STORE_GC_INTERVAL,default=10m"`
}
