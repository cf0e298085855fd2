package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/angelmondragon/constructai-backend/pkg/events"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestPublishKeysBySubject(t *testing.T) {
	t.Parallel()

	w := &recordingWriter{}
	p := &Publisher{writer: w}

	e := events.New(events.TypeDocumentIngested, "doc-42", nil)
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "doc-42" {
		t.Fatalf("expected subject key, got %q", msg.Key)
	}
	if len(msg.Headers) != 2 || string(msg.Headers[0].Value) != events.TypeDocumentIngested {
		t.Fatalf("unexpected headers %+v", msg.Headers)
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	t.Parallel()

	boom := errors.New("broker down")
	p := &Publisher{writer: &recordingWriter{err: boom}}
	if err := p.Publish(context.Background(), events.New(events.TypeDocumentIngested, "x", nil)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped writer error, got %v", err)
	}
}

func TestNewPublisherValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewPublisher(context.Background(), nil, "topic", nil); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewPublisher(context.Background(), []string{"localhost:9092"}, "", nil); err == nil {
		t.Fatal("expected error without topic")
	}
}
