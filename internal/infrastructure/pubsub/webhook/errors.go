package webhookpubsub

import "errors"

var (
	// ErrInvalidTopic is returned whenever attempting to subscribe to an unknown
	// topic.
	ErrInvalidTopic = errors.New("topic is invalid")
	// ErrInvalidEndpoint specifies that the webhook endpoint is not a valid
	// absolute URI.
	ErrInvalidEndpoint = errors.New("webhook endpoint must be a valid URI")
	// ErrWebhookNotFound is returned when removing an unknown webhook.
	ErrWebhookNotFound = errors.New("webhook not found")
)
