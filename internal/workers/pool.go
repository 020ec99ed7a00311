// Package workers consumes snapshot events with a pool of kafka readers.
package workers

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/hetulpatel/pricearb/internal/config"
	"github.com/hetulpatel/pricearb/internal/kafka"
	"github.com/hetulpatel/pricearb/internal/logging"
	"github.com/hetulpatel/pricearb/internal/queue"
)

// readBackoff is the pause after a failed read before the next attempt.
var readBackoff = 500 * time.Millisecond

// Handler processes one snapshot event.
type Handler func(context.Context, queue.SnapshotEvent) error

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// ReaderFactory opens one reader per worker.
type ReaderFactory func() MessageReader

// KafkaReaders opens group readers on the snapshot topic.
func KafkaReaders(cfg config.KafkaConfig) ReaderFactory {
	return func() MessageReader { return kafka.NewReader(cfg) }
}

// Run starts workerCount consumers and blocks until ctx is done and every
// consumer has returned.
func Run(ctx context.Context, newReader ReaderFactory, workerCount int, handler Handler) {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			reader := newReader()
			defer reader.Close()
			consume(ctx, id, reader, handler)
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
}

func consume(ctx context.Context, id int, reader MessageReader, handler Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			logging.Errorf("worker %d read error: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readBackoff):
			}
			continue
		}

		ev, err := queue.DecodeSnapshotEvent(msg.Value)
		if err != nil {
			logging.Errorf("worker %d: %v", id, err)
			continue
		}

		if handler != nil {
			if err := handler(ctx, ev); err != nil {
				logging.Errorf("worker %d snapshot %s: %v", id, ev.SnapshotID, err)
			}
		}
	}
}
