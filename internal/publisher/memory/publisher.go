// Package memory records movie notifications in process. Local runs use it
// to see what would have gone to Pub/Sub without a GCP project.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Notification is one recorded publish. Source and ID are lifted from map
// payloads the same way the Pub/Sub publisher sets message attributes.
type Notification struct {
	MessageID string
	Topic     string
	Source    string
	ID        string
	Data      []byte
}

// Publisher keeps every notification it receives.
type Publisher struct {
	logger *zap.Logger

	mu            sync.Mutex
	notifications []Notification
}

// New returns a Publisher. A nil logger is replaced with a no-op one.
func New(logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{logger: logger}
}

// Publish encodes the payload and records it under topic.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if topic == "" {
		return "", errors.New("topic is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	n := Notification{Topic: topic, Data: data}
	if m, ok := payload.(map[string]any); ok {
		n.Source, _ = m["source"].(string)
		n.ID, _ = m["id"].(string)
	}

	p.mu.Lock()
	n.MessageID = fmt.Sprintf("%s-%d", topic, len(p.notifications)+1)
	p.notifications = append(p.notifications, n)
	p.mu.Unlock()

	p.logger.Debug("notification recorded",
		zap.String("topic", topic),
		zap.String("source", n.Source),
		zap.String("movie_id", n.ID),
		zap.String("message_id", n.MessageID),
	)
	return n.MessageID, nil
}

// Notifications returns a copy of everything recorded so far.
func (p *Publisher) Notifications() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Notification, len(p.notifications))
	copy(out, p.notifications)
	return out
}

// BySource counts recorded notifications per source.
func (p *Publisher) BySource() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	counts := make(map[string]int)
	for _, n := range p.notifications {
		counts[n.Source]++
	}
	return counts
}

// Close logs a summary of the recorded notifications.
func (p *Publisher) Close() {
	counts := p.BySource()
	total := 0
	for _, c := range counts {
		total += c
	}
	p.logger.Info("notifications recorded in memory",
		zap.Int("total", total),
		zap.Any("by_source", counts),
	)
}
