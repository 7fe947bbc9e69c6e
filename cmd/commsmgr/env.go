package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

type Environment struct {
	Environment   string
	ServerAddress string
	Host          string
	ClusterPeers  []string

	MQTTBrokerURL string
	MQTTClientID  string
}

// LoadEnvironment reads and validates env vars
func LoadEnvironment() Environment {
	env := Environment{
		Environment:   os.Getenv("APP_ENV"),
		ServerAddress: os.Getenv("SERVER_ADDRESS"),
		Host:          os.Getenv("COMMSMGR_HOST"),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:  os.Getenv("MQTT_CLIENT_ID"),
	}
	if peers := os.Getenv("CLUSTER_PEERS"); peers != "" {
		for _, addr := range strings.Split(peers, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				env.ClusterPeers = append(env.ClusterPeers, addr)
			}
		}
	}

	if env.ServerAddress == "" || env.MQTTBrokerURL == "" {
		log.Fatal().Msg("SERVER_ADDRESS and MQTT_BROKER_URL are required")
	}
	if env.Host == "" {
		host, err := os.Hostname()
		if err != nil {
			log.Fatal().Err(err).Msg("COMMSMGR_HOST is required when the hostname is unavailable")
		}
		env.Host = host
	}
	if env.MQTTClientID == "" {
		env.MQTTClientID = "skylark-commsmgr-" + env.Host
	}
	return env
}
