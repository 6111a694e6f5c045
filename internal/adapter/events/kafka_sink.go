package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ltran/shopfulfill/internal/core/domain"
	"github.com/ltran/shopfulfill/pkg/logging"
)

var ErrQueueFull = errors.New("event queue full")

const publishTimeout = 5 * time.Second

// KafkaSink publishes order status-change events, keyed by order ID so all
// events for one order land on the same partition. Publishing is decoupled
// from the request path through a buffered queue drained by background
// workers; a full queue drops the event rather than blocking the caller.
type KafkaSink struct {
	writer *kafka.Writer
	queue  chan domain.OrderEvent
	wg     sync.WaitGroup
}

func NewKafkaSink(brokers []string, topic string, queueSize, workers int) *KafkaSink {
	s := &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
		},
		queue: make(chan domain.OrderEvent, queueSize),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.workerLoop()
		}()
	}

	return s
}

func (s *KafkaSink) Publish(ctx context.Context, event domain.OrderEvent) error {
	select {
	case s.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *KafkaSink) workerLoop() {
	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)

		data, err := json.Marshal(event)
		if err == nil {
			err = s.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(event.OrderID),
				Value: data,
				Time:  event.Timestamp,
			})
		}
		if err != nil {
			logging.Log(logging.Fields{
				Service: "event-sink",
				OrderID: event.OrderID,
				Status:  "publish_failed",
				Message: err.Error(),
			})
		}

		cancel()
	}
}

// Close drains queued events and shuts down the writer.
func (s *KafkaSink) Close() error {
	close(s.queue)
	s.wg.Wait()
	return s.writer.Close()
}
