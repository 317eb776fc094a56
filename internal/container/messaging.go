package container

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jaevor/go-nanoid"
	"github.com/samber/do"
	"github.com/serroba/link-converter/internal/analytics"
	analyticsstore "github.com/serroba/link-converter/internal/analytics/store"
	"github.com/serroba/link-converter/internal/messaging"
	"go.uber.org/zap"
)

// AnalyticsConsumerGroup is the redis-stream consumer group shared by consumer processes.
const AnalyticsConsumerGroup = "analytics"

const consumerNameLength = 12

// InProcessConsumers is the consumer group the server runs for the in-memory event transport.
type InProcessConsumers struct {
	*messaging.ConsumerGroup
}

// EventsPackage provides the in-memory pub/sub used when --events=memory.
func EventsPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*gochannel.GoChannel, error) {
		logger := do.MustInvoke[*zap.Logger](i)

		return gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 64,
		}, messaging.NewLoggerAdapter(logger)), nil
	})
}

// PublisherGroupPackage provides the analytics publisher for the configured transport.
func PublisherGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.PublisherGroup, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		var publisher message.Publisher

		switch opts.Events {
		case BackendMemory:
			publisher = do.MustInvoke[*gochannel.GoChannel](i)
		case BackendRedis:
			pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{
				Client:     do.MustInvoke[*Redis](i).Client,
				Marshaller: redisstream.DefaultMarshallerUnmarshaller{},
			}, messaging.NewLoggerAdapter(logger))
			if err != nil {
				return nil, fmt.Errorf("create redis stream publisher: %w", err)
			}

			publisher = pub
		default:
			return nil, opts.Validate()
		}

		return messaging.NewPublisherGroup(publisher), nil
	})

	do.Provide(injector, func(i *do.Injector) (analytics.Publishers, error) {
		group, err := do.Invoke[*messaging.PublisherGroup](i)
		if err != nil {
			return analytics.Publishers{}, err
		}

		return analytics.NewPublishers(group.Publisher()), nil
	})
}

// ConsumerGroupPackage provides the analytics consumers reading the Redis streams. Each process
// joins the shared consumer group under a unique consumer name.
func ConsumerGroupPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*messaging.ConsumerGroup, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		client := do.MustInvoke[*Redis](i).Client

		newName, err := nanoid.Standard(consumerNameLength)
		if err != nil {
			return nil, fmt.Errorf("create consumer name generator: %w", err)
		}

		consumerName := "consumer-" + newName()

		subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
			Client:        client,
			Unmarshaller:  redisstream.DefaultMarshallerUnmarshaller{},
			ConsumerGroup: AnalyticsConsumerGroup,
			Consumer:      consumerName,
		}, messaging.NewLoggerAdapter(logger).With(watermill.LogFields{"consumer": consumerName}))
		if err != nil {
			return nil, fmt.Errorf("create redis stream subscriber: %w", err)
		}

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewConsumers(subscriber, analyticsstore.NewRedis(client), logger)...)

		logger.Info("analytics consumer configured", zap.String("consumer", consumerName))

		return group, nil
	})
}

// InProcessConsumersPackage provides consumers that drain the in-memory transport into a
// logging store, so events published by the server are observed without a consumer process.
func InProcessConsumersPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*InProcessConsumers, error) {
		logger := do.MustInvoke[*zap.Logger](i)
		subscriber := do.MustInvoke[*gochannel.GoChannel](i)

		group := messaging.NewConsumerGroup(subscriber, logger)
		group.Add(analytics.NewConsumers(subscriber, analyticsstore.NewNoop(logger.Named("analytics")), logger)...)

		return &InProcessConsumers{ConsumerGroup: group}, nil
	})
}
