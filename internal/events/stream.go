package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
)

// StreamPublisher appends events to a Redis Stream (XADD).
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewStreamPublisher maxLen trims the stream approximately; 0 keeps everything.
func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, ev IngestionEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode ingestion event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"run_id":    ev.RunID,
			"home":      ev.Home,
			"success":   strconv.FormatBool(ev.Success),
			"data":      string(data),
			"timestamp": strconv.FormatInt(ev.OccurredAt.Unix(), 10),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("publish to stream %s: %w", p.stream, err)
	}
	return nil
}
