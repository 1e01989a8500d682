package webhookpubsub

import (
	"sort"
	"sync"
)

// webhookStore keeps the registered webhooks indexed by id and by topic.
type webhookStore struct {
	lock    *sync.RWMutex
	hooks   map[string]*Webhook
	byTopic map[Topic][]string
}

func newWebhookStore() *webhookStore {
	return &webhookStore{
		lock:    &sync.RWMutex{},
		hooks:   make(map[string]*Webhook),
		byTopic: make(map[Topic][]string),
	}
}

func (s *webhookStore) add(hook *Webhook) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.hooks[hook.ID]; ok {
		return
	}
	s.hooks[hook.ID] = hook
	s.byTopic[hook.Topic] = append(s.byTopic[hook.Topic], hook.ID)
}

func (s *webhookStore) remove(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	hook, ok := s.hooks[id]
	if !ok {
		return ErrWebhookNotFound
	}
	delete(s.hooks, id)

	ids := s.byTopic[hook.Topic]
	for i, hookID := range ids {
		if hookID == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) <= 0 {
		delete(s.byTopic, hook.Topic)
		return nil
	}
	s.byTopic[hook.Topic] = ids
	return nil
}

// list returns the webhooks registered for the topic, plus those registered
// for any topic, sorted by id.
func (s *webhookStore) list(topic Topic) []Webhook {
	s.lock.RLock()
	defer s.lock.RUnlock()

	ids := append([]string{}, s.byTopic[topic]...)
	if topic != AllTopics {
		ids = append(ids, s.byTopic[AllTopics]...)
	}
	hooks := make([]Webhook, 0, len(ids))
	for _, id := range ids {
		hooks = append(hooks, *s.hooks[id])
	}
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].ID < hooks[j].ID
	})
	return hooks
}

func (s *webhookStore) all() []Webhook {
	s.lock.RLock()
	defer s.lock.RUnlock()

	hooks := make([]Webhook, 0, len(s.hooks))
	for _, hook := range s.hooks {
		hooks = append(hooks, *hook)
	}
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].ID < hooks[j].ID
	})
	return hooks
}
