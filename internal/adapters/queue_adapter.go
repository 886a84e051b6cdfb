package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobHandler processes one message taken from a queue.
type JobHandler func(ctx context.Context, data []byte) error

// QueueAdapter is the contract for publishing to and consuming from named queues.
type QueueAdapter interface {
	// Publish sends jobData to queueName.
	Publish(ctx context.Context, queueName string, jobData []byte) error
	// StartConsuming runs handler for every message of queueName in the background.
	StartConsuming(ctx context.Context, queueName string, handler JobHandler) error
	// StopConsuming stops the consumer of queueName.
	StopConsuming(ctx context.Context, queueName string) error
	// Close stops every consumer and waits for in-flight handlers to return.
	Close() error
}

// ErrQueueFull is returned when a publish cannot be buffered in time.
var ErrQueueFull = errors.New("queue full")

// InMemoryQueueAdapter is a QueueAdapter backed by buffered channels.
type InMemoryQueueAdapter struct {
	queues         map[string]chan []byte
	mu             sync.RWMutex
	logger         *zap.Logger
	stopChan       map[string]chan struct{}
	wg             sync.WaitGroup
	consumerCtx    context.Context
	cancelFunc     context.CancelFunc
	bufferSize     int
	publishTimeout time.Duration
}

// NewInMemoryQueueAdapter creates queues lazily with room for bufferSize
// messages; a publish gives up after publishTimeout when a queue is full.
func NewInMemoryQueueAdapter(logger *zap.Logger, bufferSize int, publishTimeout time.Duration) *InMemoryQueueAdapter {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if publishTimeout <= 0 {
		publishTimeout = 2 * time.Second
	}
	consumerCtx, cancelFunc := context.WithCancel(context.Background())
	return &InMemoryQueueAdapter{
		queues:         make(map[string]chan []byte),
		logger:         logger.With(zap.String("component", "queue")),
		stopChan:       make(map[string]chan struct{}),
		consumerCtx:    consumerCtx,
		cancelFunc:     cancelFunc,
		bufferSize:     bufferSize,
		publishTimeout: publishTimeout,
	}
}

func (q *InMemoryQueueAdapter) getOrCreateQueue(queueName string) (chan []byte, chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.queues[queueName]; !ok {
		q.queues[queueName] = make(chan []byte, q.bufferSize)
		q.logger.Debug("In-memory queue created", zap.String("queue", queueName))
	}
	if _, ok := q.stopChan[queueName]; !ok {
		q.stopChan[queueName] = make(chan struct{})
	}
	return q.queues[queueName], q.stopChan[queueName]
}

func (q *InMemoryQueueAdapter) Publish(ctx context.Context, queueName string, jobData []byte) error {
	queue, _ := q.getOrCreateQueue(queueName)

	timer := time.NewTimer(q.publishTimeout)
	defer timer.Stop()

	select {
	case queue <- jobData:
		q.logger.Debug("Message published",
			zap.String("queue", queueName),
			zap.Int("depth", len(queue)),
		)
		return nil
	case <-ctx.Done():
		q.logger.Warn("Publish cancelled", zap.String("queue", queueName), zap.Error(ctx.Err()))
		return ctx.Err()
	case <-timer.C:
		q.logger.Warn("Publish timed out, queue possibly full", zap.String("queue", queueName))
		return ErrQueueFull
	}
}

func (q *InMemoryQueueAdapter) StartConsuming(ctx context.Context, queueName string, handler JobHandler) error {
	queue, stop := q.getOrCreateQueue(queueName)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.logger.Info("Consumer started", zap.String("queue", queueName))
		for {
			select {
			case data, ok := <-queue:
				if !ok {
					q.logger.Info("Queue closed, consumer exiting", zap.String("queue", queueName))
					return
				}
				if err := handler(q.consumerCtx, data); err != nil {
					q.logger.Error("Failed to process message",
						zap.String("queue", queueName),
						zap.Error(err),
					)
				}
			case <-stop:
				q.logger.Info("Consumer stopped", zap.String("queue", queueName))
				return
			case <-ctx.Done():
				q.logger.Info("Consumer context cancelled", zap.String("queue", queueName))
				return
			case <-q.consumerCtx.Done():
				return
			}
		}
	}()
	return nil
}

func (q *InMemoryQueueAdapter) StopConsuming(ctx context.Context, queueName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if stop, ok := q.stopChan[queueName]; ok {
		close(stop)
		delete(q.stopChan, queueName)
	}
	// The queue channel stays open; publishers may still hold it.
	return nil
}

func (q *InMemoryQueueAdapter) Close() error {
	q.cancelFunc()
	q.wg.Wait()
	q.logger.Info("All queue consumers stopped")
	return nil
}
