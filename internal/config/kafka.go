package config

import (
	"time"
)

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func loadKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Enabled:      getEnvAsBool("KAFKA_ENABLED", false),
		Brokers:      getEnvAsSlice("KAFKA_BROKERS", []string{}),
		Topic:        getEnv("KAFKA_TOPIC", "ridelink.lifecycle"),
		WriteTimeout: getEnvAsDuration("KAFKA_WRITE_TIMEOUT", 2*time.Second),
	}
}
