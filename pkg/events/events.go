// Package events defines the domain event envelope published on pipeline state changes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	TypeDocumentIngested      = "document.ingested"
	TypeDocumentStatusChanged = "document.status_changed"
	TypeConversionCompleted   = "conversion.completed"
)

// Event is the wire envelope shared by every publisher backend.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// New stamps a fresh id and timestamp onto an event.
func New(eventType, subject string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Encode serialises the envelope.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", e.Type, err)
	}
	return b, nil
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// StatusChange is the payload of document.status_changed.
type StatusChange struct {
	DocumentID string `json:"document_id"`
	ProjectID  string `json:"project_id,omitempty"`
	From       string `json:"from"`
	To         string `json:"to"`
}
