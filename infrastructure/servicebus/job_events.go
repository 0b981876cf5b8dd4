package servicebus

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"crosspost/infrastructure/logger"
)

type IJobEvents interface {
	SendMessage(message []byte) error
}

// JobEvents publishes job lifecycle events to an Azure Service Bus queue.
type JobEvents struct {
	AzservicebusClient *azservicebus.Client
	Queue              string
}

func NewJobEvents(azServiceBusClient *azservicebus.Client, queue string) IJobEvents {
	if queue == "" {
		queue = "publish-jobs"
	}
	return &JobEvents{AzservicebusClient: azServiceBusClient, Queue: queue}
}

func (jobEvents *JobEvents) SendMessage(message []byte) error {
	sender, err := jobEvents.AzservicebusClient.NewSender(jobEvents.Queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender, ctx context.Context) {
		err := sender.Close(ctx)
		if err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender, context.Background())

	sbMessage := &azservicebus.Message{
		Body: message,
	}
	err = sender.SendMessage(context.Background(), sbMessage, nil)
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}

	return nil
}
