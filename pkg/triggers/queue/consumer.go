// Package queue consumes inbound completion triggers from a Redis queue.
//
// External subsystems that cannot produce to Kafka push completion payloads
// onto a Redis list instead; the consumer validates each payload against a
// JSON schema before handing it to the engine, so malformed producers are
// rejected at the edge rather than deep inside a cascade.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"
)

// Completion is one validated inbound trigger: a stage's requirements are
// satisfied for an application, with the snapshot fields conditions need.
type Completion struct {
	ApplicationID string         `json:"application_id"`
	StageID       string         `json:"stage_id"`
	Category      string         `json:"category,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
	ContextData   map[string]any `json:"context_data,omitempty"`
}

// Callback handles one validated completion payload.
type Callback func(ctx context.Context, completion Completion) error

// payloadSchema is the contract inbound producers must satisfy.
var payloadSchema = map[string]any{
	"type":     "object",
	"required": []any{"application_id", "stage_id"},
	"properties": map[string]any{
		"application_id": map[string]any{"type": "string", "minLength": 1},
		"stage_id":       map[string]any{"type": "string", "minLength": 1},
		"category":       map[string]any{"type": "string"},
		"data":           map[string]any{"type": "object"},
		"context_data":   map[string]any{"type": "object"},
	},
}

type Consumer struct {
	Connection map[string]string
	Queue      string

	client   redis.UniversalClient
	callback Callback
	logger   *slog.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewConsumer builds a queue consumer from flat string configuration. The
// queue name is required; connection defaults to a local Redis.
func NewConsumer(connection map[string]string, queue string, logger *slog.Logger) (*Consumer, error) {
	if queue == "" {
		return nil, errors.New("completion queue name is required")
	}

	return &Consumer{
		Connection: connection,
		Queue:      queue,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "completion_queue",
			"queue", queue,
		),
	}, nil
}

// Start connects to Redis and begins consuming in a background goroutine.
func (c *Consumer) Start(ctx context.Context, callback Callback) error {
	c.callback = callback

	if err := c.initializeClient(ctx); err != nil {
		return fmt.Errorf("failed to initialize queue client: %w", err)
	}

	c.wg.Add(1)

	go c.consume(ctx)

	return nil
}

func (c *Consumer) initializeClient(ctx context.Context) error {
	addr := c.Connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	password := c.Connection["password"]
	db := 0

	if dbStr := c.Connection["db"]; dbStr != "" {
		if _, err := fmt.Sscanf(dbStr, "%d", &db); err != nil {
			return fmt.Errorf("invalid db value: %w", err)
		}
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.logger.InfoContext(ctx, "Connected to Redis", "addr", addr, "db", db)

	return nil
}

func (c *Consumer) consume(ctx context.Context) {
	defer c.wg.Done()

	c.logger.InfoContext(ctx, "Starting completion queue consumer")

	for {
		select {
		case <-c.stopCh:
			c.logger.InfoContext(ctx, "Completion queue consumer stopped")

			return
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, stopping completion queue consumer")

			return
		default:
			if err := c.processMessage(ctx); err != nil {
				c.logger.ErrorContext(ctx, "Error processing completion message", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	result, err := c.client.BLPop(ctx, 1*time.Second, c.Queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}

		return fmt.Errorf("failed to pop message from queue: %w", err)
	}

	if len(result) < 2 {
		return nil
	}

	completion, err := DecodePayload([]byte(result[1]))
	if err != nil {
		// A bad payload is the producer's fault; log and keep consuming.
		c.logger.WarnContext(ctx, "Rejected completion payload", "error", err)

		return nil
	}

	if err := c.callback(ctx, completion); err != nil {
		c.logger.ErrorContext(ctx, "Error handling completion",
			"application_id", completion.ApplicationID,
			"stage_id", completion.StageID,
			"error", err)
	}

	return nil
}

// DecodePayload parses and schema-validates one raw queue payload.
func DecodePayload(raw []byte) (Completion, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Completion{}, fmt.Errorf("payload is not valid JSON: %w", err)
	}

	if err := validatePayload(payload); err != nil {
		return Completion{}, err
	}

	var completion Completion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return Completion{}, fmt.Errorf("failed to decode payload: %w", err)
	}

	return completion, nil
}

func validatePayload(payload map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(payloadSchema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultError := range result.Errors() {
			details = append(details, resultError.String())
		}

		return fmt.Errorf("JSON schema validation failed: %s", strings.Join(details, "; "))
	}

	return nil
}

// Stop halts consumption and closes the Redis connection.
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.InfoContext(ctx, "Stopping completion queue consumer")

	close(c.stopCh)
	c.wg.Wait()

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.logger.ErrorContext(ctx, "Error closing Redis client", "error", err)
		}
	}

	return nil
}
