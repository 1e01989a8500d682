package webhookpubsub

import (
	"strings"

	"github.com/tdex-network/tdex-stealth/internal/core/ports"
)

// webhook topics
const (
	TransferUpdated Topic = iota
	TransferSettled
	TransferStranded
	AllTopics
)

var (
	topicToString = map[Topic]string{
		TransferUpdated:  "TRANSFER_UPDATED",
		TransferSettled:  "TRANSFER_SETTLED",
		TransferStranded: "TRANSFER_STRANDED",
		AllTopics:        "*",
	}
	stringToTopic = map[string]Topic{
		"TRANSFER_UPDATED":  TransferUpdated,
		"TRANSFER_SETTLED":  TransferSettled,
		"TRANSFER_STRANDED": TransferStranded,
		"*":                 AllTopics,
	}
)

// Topic selects which transfer events are delivered to a webhook.
type Topic int

func TopicFromString(topicStr string) (Topic, bool) {
	topic, ok := stringToTopic[strings.ToUpper(topicStr)]
	return topic, ok
}

func (t Topic) String() string {
	topicStr, ok := topicToString[t]
	if !ok {
		topicStr = "UNKNOWN"
	}
	return topicStr
}

// Matches returns whether the event must be delivered for the topic.
// TRANSFER_UPDATED and * get every status change, TRANSFER_SETTLED only
// terminal ones and TRANSFER_STRANDED only partial failures.
func (t Topic) Matches(event ports.TransferEvent) bool {
	switch t {
	case TransferUpdated, AllTopics:
		return true
	case TransferSettled:
		return event.Status == "CONFIRMED" ||
			event.Status == "FAILED" ||
			event.Status == "PARTIALLY_FAILED"
	case TransferStranded:
		return event.Status == "PARTIALLY_FAILED"
	default:
		return false
	}
}
