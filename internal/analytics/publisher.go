package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/link-converter/internal/messaging"
)

// Publishers holds the typed publish functions for every analytics topic.
type Publishers struct {
	LinkCreated  messaging.Publish[LinkCreatedEvent]
	LinkResolved messaging.Publish[LinkResolvedEvent]
}

// NewPublishers binds one publish function per topic to publisher.
func NewPublishers(publisher message.Publisher) Publishers {
	return Publishers{
		LinkCreated:  messaging.NewPublishFunc[LinkCreatedEvent](publisher, TopicLinkCreated),
		LinkResolved: messaging.NewPublishFunc[LinkResolvedEvent](publisher, TopicLinkResolved),
	}
}
