package lib

import (
	"accessbus/src/types"
	"context"
	"encoding/json"
	"log"
)

// EventPublisher fans reservation events out to subscribers.
type EventPublisher interface {
	Name() string
	Publish(ctx context.Context, evt types.Event) error
}

var publisher EventPublisher

func NewPublisher(p EventPublisher) {
	publisher = p
}

func GetPublisher() EventPublisher {
	if publisher != nil {
		return publisher
	}
	publisher = &LogPublisher{}
	return publisher
}

// LogPublisher writes events to the server log.
type LogPublisher struct{}

func (l *LogPublisher) Name() string {
	return "Log"
}

func (l *LogPublisher) Publish(ctx context.Context, evt types.Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	log.Printf("[event] %s\n", string(b))
	return nil
}
