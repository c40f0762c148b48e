package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const topicReadAttempts = 5

// topicReadBackoff is a variable so tests can shorten it
var topicReadBackoff = 2 * time.Second

// ensureTopic creates the topic when its partitions cannot be read, retrying
// the read a few times first since a fresh broker may not have metadata yet
func ensureTopic(admin topicAdmin, topicName string, numPartitions int, replicationFactor int, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error

	log.Info("Checking if Kafka topic exists", "topic", topicName)
	for i := 0; i < topicReadAttempts; i++ {
		partitions, err = admin.ReadPartitions(topicName)
		if err == nil {
			break
		}
		log.Warn("Failed to read partitions, retrying...", "topic", topicName, "attempt", i+1, "error", err)
		time.Sleep(topicReadBackoff)
	}

	if len(partitions) > 0 {
		log.Info("Kafka topic already exists", "topic", topicName, "partitions", len(partitions))
		return nil
	}

	topicConfig := kafka.TopicConfig{
		Topic:             topicName,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	}
	if topicConfig.NumPartitions <= 0 {
		topicConfig.NumPartitions = 1
	}
	if topicConfig.ReplicationFactor <= 0 {
		topicConfig.ReplicationFactor = 1
	}

	log.Info("Creating Kafka topic",
		"topic", topicName,
		"partitions", topicConfig.NumPartitions,
		"replication_factor", topicConfig.ReplicationFactor,
		"last_read_error", err,
	)
	if err := admin.CreateTopics(topicConfig); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topicName, err)
	}
	log.Info("Successfully created Kafka topic", "topic", topicName)
	return nil
}

// dialAndEnsureTopic opens an admin connection to brokers and provisions topic
func dialAndEnsureTopic(brokers, topic string, numPartitions, replicationFactor int, log *slog.Logger) error {
	conn, err := kafka.Dial("tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	return ensureTopic(conn, topic, numPartitions, replicationFactor, log)
}
