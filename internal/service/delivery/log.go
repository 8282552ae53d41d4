package delivery

import (
	"context"

	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

// LogSink records callback requests in the service log. It is the default
// transport when no queue is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink returns a sink writing to logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Deliver logs req. The phone number is masked down to its last four digits.
func (s *LogSink) Deliver(_ context.Context, req widget.CallbackRequest) error {
	s.logger.Info("callback requested",
		zap.String("name", req.Name),
		zap.String("phone", maskPhone(req.Phone)),
		zap.String("preferred_time", req.PreferredTime),
	)
	return nil
}

func maskPhone(phone string) string {
	const visible = 4
	if len(phone) <= visible {
		return phone
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		switch {
		case i >= len(phone)-visible, phone[i] == '+':
			masked[i] = phone[i]
		default:
			masked[i] = '*'
		}
	}
	return string(masked)
}
