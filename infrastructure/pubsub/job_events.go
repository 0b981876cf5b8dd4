package pubsub

import (
	"context"
	"log"

	"cloud.google.com/go/pubsub"

	"crosspost/infrastructure/logger"
)

type IJobEvents interface {
	Publish(ctx context.Context, topic string, payload []byte) (string, error)
	GetSubscription(subID string) (*pubsub.Subscription, error)
}

// JobEvents publishes job lifecycle events to Google Cloud Pub/Sub.
type JobEvents struct {
	PubSubClient *pubsub.Client
}

func NewJobEvents(pubSubClient *pubsub.Client) IJobEvents {
	return &JobEvents{
		PubSubClient: pubSubClient,
	}
}

func (jobEvents *JobEvents) Publish(
	ctx context.Context,
	topicName string,
	payload []byte,
) (string, error) {
	msg := &pubsub.Message{
		Data: payload,
	}

	topic := jobEvents.PubSubClient.Topic(topicName)

	// Create the topic if it doesn't exist.
	exists, err := topic.Exists(ctx)
	if err != nil {
		return "", err
	}
	if !exists {
		log.Printf("Topic %v doesn't exist - creating it", topicName)
		_, err = jobEvents.PubSubClient.CreateTopic(ctx, topicName)
		if err != nil {
			return "", err
		}
	}

	serverId, err := topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return "", err
	}

	logger.GetLogger().WithField("server ID", serverId).Info("Job event published")
	return serverId, nil
}

func (jobEvents *JobEvents) GetSubscription(
	subID string,
) (*pubsub.Subscription, error) {
	logger.GetLogger().WithField("subID", subID).Info("PubSub starting...")

	return jobEvents.PubSubClient.Subscription(subID), nil
}
