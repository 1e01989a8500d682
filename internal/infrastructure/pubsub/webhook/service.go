package webhookpubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/tdex-stealth/internal/core/ports"
	"github.com/tdex-network/tdex-stealth/pkg/circuitbreaker"
	"golang.org/x/sync/errgroup"
)

const defaultRequestTimeout = 15 * time.Second

// Publisher delivers transfer events to the registered webhooks with a POST
// request. Secured webhooks receive an HS256 jwt bearer token signed with
// their secret.
type Publisher struct {
	store      *webhookStore
	httpClient *client
	cb         *gobreaker.CircuitBreaker
}

// NewPublisher returns a webhook publisher. A zero requestTimeout defaults
// to 15 seconds.
func NewPublisher(requestTimeout time.Duration) *Publisher {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Publisher{
		store:      newWebhookStore(),
		httpClient: newHTTPClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("webhook"),
	}
}

func (p *Publisher) Subscribe(topic, endpoint, secret string) (string, error) {
	t, ok := TopicFromString(topic)
	if !ok {
		return "", ErrInvalidTopic
	}
	hook, err := NewWebhook(t, endpoint, secret)
	if err != nil {
		return "", err
	}

	p.store.add(hook)
	return hook.ID, nil
}

func (p *Publisher) Unsubscribe(id string) error {
	return p.store.remove(id)
}

// ListWebhooks returns the webhooks registered for the given topic, or every
// webhook if topic is empty.
func (p *Publisher) ListWebhooks(topic string) ([]Webhook, error) {
	if topic == "" {
		return p.store.all(), nil
	}
	t, ok := TopicFromString(topic)
	if !ok {
		return nil, ErrInvalidTopic
	}
	return p.store.list(t), nil
}

// PublishTransferEvent makes a POST request to every webhook whose topic
// matches the event.
func (p *Publisher) PublishTransferEvent(
	ctx context.Context, event ports.TransferEvent,
) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transfer event: %w", err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, hook := range p.store.all() {
		hook := hook
		if !hook.Topic.Matches(event) {
			continue
		}
		eg.Go(func() error { return p.doRequest(ctx, hook, event, payload) })
	}
	return eg.Wait()
}

func (p *Publisher) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *Publisher) doRequest(
	ctx context.Context, hook Webhook, event ports.TransferEvent, payload []byte,
) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		headers := map[string]string{
			"Content-Type": "application/json",
		}
		if hook.IsSecured() {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
				"transfer_id": event.TransferID,
				"status":      event.Status,
				"iat":         time.Now().Unix(),
			})
			tokenString, err := token.SignedString([]byte(hook.Secret))
			if err != nil {
				return nil, err
			}
			headers["Authorization"] = fmt.Sprintf("Bearer %s", tokenString)
		}

		status, resp, err := p.httpClient.post(ctx, hook.Endpoint, payload, headers)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("webhook %s: %d %s", hook.ID, status, resp)
		}
		return nil, nil
	})
	return err
}
