// Package queue provides a Redis-backed trigger event source.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/rsvphq/journey/pkg/events"
)

// TriggerCallback receives each decoded trigger event.
type TriggerCallback func(ctx context.Context, event events.TriggerEvent) error

// Config holds the Redis connection and queue settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Source consumes trigger events from a Redis list. CRM services push JSON
// TriggerEvent documents with RPUSH; the source pops them with BLPOP and hands
// them to the callback.
type Source struct {
	config   Config
	client   redis.UniversalClient
	callback TriggerCallback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewSource(config Config, logger *slog.Logger) (*Source, error) {
	if config.Queue == "" {
		return nil, errors.New("queue source queue name is required")
	}

	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}

	return &Source{
		config: config,
		stopCh: make(chan struct{}),
		logger: logger.With(
			"module", "queue_source",
			"queue", config.Queue,
		),
	}, nil
}

func (s *Source) Start(ctx context.Context, callback TriggerCallback) error {
	s.logger.InfoContext(ctx, "Starting queue source")
	s.callback = callback

	err := s.initializeClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	s.wg.Add(1)

	go s.consume(ctx)

	return nil
}

func (s *Source) initializeClient(ctx context.Context) error {
	s.client = redis.NewClient(&redis.Options{
		Addr:     s.config.Addr,
		Password: s.config.Password,
		DB:       s.config.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.logger.InfoContext(ctx, "Connected to Redis", "addr", s.config.Addr, "db", s.config.DB)

	return nil
}

func (s *Source) consume(ctx context.Context) {
	defer s.wg.Done()

	s.logger.InfoContext(ctx, "Starting queue consumer")

	for {
		select {
		case <-s.stopCh:
			s.logger.InfoContext(ctx, "Queue consumer stopped")

			return
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Context cancelled, stopping queue consumer")

			return
		default:
			err := s.processMessage(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "Error processing message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (s *Source) processMessage(ctx context.Context) error {
	result, err := s.client.BLPop(ctx, 1*time.Second, s.config.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	message := result[1]

	var event events.TriggerEvent
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		return fmt.Errorf("failed to decode trigger event: %w", err)
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	// Payload schema validation happens ahead of the callback so a poison
	// message is logged and dropped instead of reaching the engine.
	if err := events.ValidateTriggerPayload(event.TriggerType, event.Payload); err != nil {
		s.logger.WarnContext(ctx, "Dropping invalid trigger event",
			"event_id", event.ID,
			"trigger_type", event.TriggerType,
			"error", err)

		return nil
	}

	s.logger.InfoContext(ctx, "Received trigger event",
		"event_id", event.ID,
		"trigger_type", event.TriggerType,
		"scope_id", event.ScopeID)

	go func() {
		err := s.callback(ctx, event)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error handling trigger event",
				"event_id", event.ID,
				"error", err)
		}
	}()

	return nil
}

func (s *Source) Stop(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Stopping queue source")

	close(s.stopCh)
	s.wg.Wait()

	if s.client != nil {
		err := s.client.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
