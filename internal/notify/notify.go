// Package notify publishes materialization run events to Kafka, where
// downstream consumers (training schedulers, monitors) pick them up.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// RunEvent describes one finished (or failed) pipeline run.
type RunEvent struct {
	RunID        string    `json:"run_id"`
	FeatureGroup string    `json:"feature_group"`
	Version      int       `json:"feature_group_version"`
	WindowFrom   time.Time `json:"window_from"`
	WindowTo     time.Time `json:"window_to"`
	Rows         int       `json:"rows"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Publisher sends run events to one topic.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher builds a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.LeastBytes{},
		},
	}
}

// Publish sends one event, keyed by run ID so consumers can compact.
func (p *Publisher) Publish(ctx context.Context, e RunEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "notify: marshal event")
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.RunID),
		Value: data,
		Time:  time.Now(),
	})
	return errors.Wrap(err, "notify: write message")
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
