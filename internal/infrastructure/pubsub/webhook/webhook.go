package webhookpubsub

import (
	"net/url"

	"github.com/google/uuid"
)

type Webhook struct {
	ID       string `json:"id"`
	Topic    Topic  `json:"topic"`
	Endpoint string `json:"endpoint"`
	Secret   string `json:"secret,omitempty"`
}

func NewWebhook(topic Topic, endpoint, secret string) (*Webhook, error) {
	if topic < TransferUpdated || topic > AllTopics {
		return nil, ErrInvalidTopic
	}
	if u, err := url.ParseRequestURI(endpoint); err != nil || u.Host == "" {
		return nil, ErrInvalidEndpoint
	}
	id := uuid.New().String()
	return &Webhook{id, topic, endpoint, secret}, nil
}

func (h *Webhook) IsSecured() bool {
	return len(h.Secret) > 0
}
