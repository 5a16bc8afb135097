package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/vinayprograms/pluginkit/bus"
	"github.com/vinayprograms/pluginkit/logging"
	"github.com/vinayprograms/pluginkit/telemetry"
)

// BatchMessage is the bus payload for one journal batch.
type BatchMessage struct {
	Cmdr   string   `json:"cmdr"`
	File   string   `json:"file"`
	Events []string `json:"events"`
}

// PublishBatch sends a batch on subject, carrying the trace context of ctx.
// Empty batches are not sent.
func PublishBatch(ctx context.Context, b bus.MessageBus, subject, cmdr, file string, events []string) error {
	if len(events) == 0 {
		return nil
	}
	data, err := json.Marshal(BatchMessage{Cmdr: cmdr, File: file, Events: events})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	msg := bus.NewMessage(subject, data)
	telemetry.InjectContext(ctx, telemetry.MapCarrier(msg.Header))
	return b.PublishMsg(msg)
}

// Feed pumps batches from a bus subscription into a Hub, in arrival order.
type Feed struct {
	hub    *Hub
	sub    bus.Subscription
	logger *logging.Logger

	done chan struct{}
	once sync.Once
}

// NewFeed subscribes to subject and starts delivering to hub.
func NewFeed(b bus.MessageBus, subject string, hub *Hub, logger *logging.Logger) (*Feed, error) {
	sub, err := b.Subscribe(subject)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	if logger == nil {
		logger = logging.Nop()
	}

	f := &Feed{
		hub:    hub,
		sub:    sub,
		logger: logger.WithComponent("journal"),
		done:   make(chan struct{}),
	}
	go f.run()
	return f, nil
}

func (f *Feed) run() {
	defer close(f.done)
	for msg := range f.sub.Messages() {
		var bm BatchMessage
		if err := json.Unmarshal(msg.Data, &bm); err != nil {
			f.logger.Warn("bad_batch_message", logging.Fields{
				"id":    msg.ID,
				"error": err,
			})
			continue
		}
		ctx := telemetry.ExtractContext(context.Background(), telemetry.MapCarrier(msg.Header))
		f.hub.DeliverContext(ctx, bm.Cmdr, bm.File, bm.Events)
	}
}

// Stop unsubscribes and waits for the in-flight batch to finish.
func (f *Feed) Stop() {
	f.once.Do(func() {
		f.sub.Unsubscribe()
	})
	<-f.done
}

// Done is closed once the feed has stopped delivering.
func (f *Feed) Done() <-chan struct{} {
	return f.done
}
