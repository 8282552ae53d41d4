package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

const defaultStream = "callback:requests"

// RedisStreamSink appends callback requests to a Redis stream for the call team's workers.
type RedisStreamSink struct {
	rdb    redis.Cmdable
	stream string
	now    func() time.Time
	logger *zap.Logger
}

// NewRedisStreamSink returns a sink writing to stream through rdb.
func NewRedisStreamSink(rdb redis.Cmdable, stream string, logger *zap.Logger) (*RedisStreamSink, error) {
	if rdb == nil {
		return nil, errors.New("delivery: redis client must not be nil")
	}
	if stream == "" {
		stream = defaultStream
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStreamSink{
		rdb:    rdb,
		stream: stream,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}, nil
}

// Deliver XADDs req to the stream.
func (s *RedisStreamSink) Deliver(ctx context.Context, req widget.CallbackRequest) error {
	id, err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: streamValues(req, s.now()),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish callback request: %w", err)
	}
	s.logger.Info("callback request queued", zap.String("stream", s.stream), zap.String("entry_id", id))
	return nil
}

func streamValues(req widget.CallbackRequest, at time.Time) map[string]any {
	return map[string]any{
		"name":           req.Name,
		"phone":          req.Phone,
		"preferred_time": req.PreferredTime,
		"consent":        req.Consent,
		"requested_at":   at.Format(time.RFC3339),
	}
}
