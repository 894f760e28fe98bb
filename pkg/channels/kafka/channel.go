// Package kafka wires the Kafka-backed channel used in production.
package kafka

import (
	"errors"
	"os"
	"strings"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
)

// BrokersFromEnv reads the broker list from KAFKA_BROKERS.
func BrokersFromEnv() ([]string, error) {
	raw := strings.TrimSpace(os.Getenv("KAFKA_BROKERS"))
	if raw == "" {
		return nil, errors.New("KAFKA_BROKERS environment variable is not set or empty")
	}

	return strings.Split(raw, ","), nil
}

// CreateChannel builds a publisher and a consumer-group subscriber for
// serviceName. Each service gets its own consumer group so the API and
// the workers read their topics independently.
func CreateChannel(logger watermill.LoggerAdapter, serviceName string) (*kafka.Publisher, *kafka.Subscriber, error) {
	brokers, err := BrokersFromEnv()
	if err != nil {
		return nil, nil, err
	}

	subscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	subscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: subscriberConfig,
			ConsumerGroup:         "credenflow-" + serviceName,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	// Execution commands must not be dropped on broker failover, so the
	// producer waits for the full in-sync replica set.
	publisherConfig := sarama.NewConfig()
	publisherConfig.Producer.Return.Successes = true
	publisherConfig.Producer.RequiredAcks = sarama.WaitForAll

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: publisherConfig,
			OTELEnabled:           true,
		},
		logger,
	)
	if err != nil {
		return nil, nil, err
	}

	return publisher, subscriber, nil
}
