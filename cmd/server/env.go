package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

type Environment struct {
	Environment        string
	ServerAddress      string
	JWTSecret          string
	OperatorSecretHash string

	DatabaseURL    string
	MigrationsPath string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string
	MQTTClientID  string

	PlaylistRoot    string
	StationCallsign string
}

// LoadEnvironment reads and validates env vars
func LoadEnvironment() Environment {
	env := Environment{
		Environment:        os.Getenv("APP_ENV"),
		ServerAddress:      os.Getenv("SERVER_ADDRESS"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		OperatorSecretHash: os.Getenv("OPERATOR_SECRET_HASH"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:  os.Getenv("MQTT_CLIENT_ID"),

		PlaylistRoot:    os.Getenv("PLAYLIST_ROOT"),
		StationCallsign: os.Getenv("STATION_CALLSIGN"),
	}

	if env.DatabaseURL == "" || env.JWTSecret == "" || env.ServerAddress == "" {
		log.Fatal().Msg("DATABASE_URL, JWT_SECRET and SERVER_ADDRESS are required")
	}
	if env.RedisAddress == "" || env.MQTTBrokerURL == "" {
		log.Fatal().Msg("REDIS_ADDRESS and MQTT_BROKER_URL are required")
	}
	if env.PlaylistRoot == "" {
		log.Fatal().Msg("PLAYLIST_ROOT is required")
	}
	if env.MQTTClientID == "" {
		env.MQTTClientID = "skylark-server"
	}
	if env.StationCallsign == "" {
		env.StationCallsign = "SKYLARK"
	}
	return env
}
