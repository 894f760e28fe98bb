// Package notify implements the approver notification boundary on Redis.
// Pending approvals are pushed onto a per-group list that the notification
// center of the surrounding product consumes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/credenflow/credenflow/pkg/collaborators"
)

const defaultQueuePrefix = "credenflow:approvals:"

// RedisNotifier publishes approval requests to Redis lists keyed by
// approver group.
type RedisNotifier struct {
	client      redis.UniversalClient
	queuePrefix string
	logger      *slog.Logger
}

// NewRedisNotifier connects to Redis at the given URL.
func NewRedisNotifier(redisURL string, logger *slog.Logger) (*RedisNotifier, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &RedisNotifier{
		client:      redis.NewClient(options),
		queuePrefix: defaultQueuePrefix,
		logger:      logger,
	}, nil
}

// NewRedisNotifierWithClient wraps an existing client, used by tests.
func NewRedisNotifierWithClient(client redis.UniversalClient, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:      client,
		queuePrefix: defaultQueuePrefix,
		logger:      logger,
	}
}

// NotifyPending pushes the request onto the approver group's queue.
func (n *RedisNotifier) NotifyPending(ctx context.Context, request collaborators.ApprovalRequest) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal approval request: %w", err)
	}

	group := request.ApproverGroup
	if group == "" {
		group = "default"
	}

	queue := n.queuePrefix + group

	if err := n.client.LPush(ctx, queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue approval request on %s: %w", queue, err)
	}

	n.logger.Debug("Approval request enqueued",
		"queue", queue,
		"step_execution_id", request.StepExecutionID)

	return nil
}

// Close releases the underlying client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
