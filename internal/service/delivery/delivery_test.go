package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
)

func TestLogSinkMasksPhone(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))

	err := sink.Deliver(context.Background(), widget.CallbackRequest{
		Name:          "Jane",
		Phone:         "+12125551234",
		PreferredTime: "mornings",
		Consent:       true,
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("callback requested").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "Jane", fields["name"])
	require.Equal(t, "+*******1234", fields["phone"])
	require.Equal(t, "mornings", fields["preferred_time"])
}

func TestMaskPhoneShortInput(t *testing.T) {
	require.Equal(t, "+12", maskPhone("+12"))
	require.Equal(t, "", maskPhone(""))
}

func TestStreamValues(t *testing.T) {
	at := time.Date(2025, 5, 1, 10, 30, 0, 0, time.UTC)
	values := streamValues(widget.CallbackRequest{Name: "Jane", Phone: "+15551234567", Consent: true}, at)

	require.Equal(t, map[string]any{
		"name":           "Jane",
		"phone":          "+15551234567",
		"preferred_time": "",
		"consent":        true,
		"requested_at":   "2025-05-01T10:30:00Z",
	}, values)
}

func TestNewRedisStreamSinkRequiresClient(t *testing.T) {
	_, err := NewRedisStreamSink(nil, "", nil)
	require.Error(t, err)
}

// fakeRedis overrides XAdd; every other command panics through the nil embedded interface.
type fakeRedis struct {
	redis.Cmdable
	args *redis.XAddArgs
	err  error
}

func (f *fakeRedis) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = a
	cmd := redis.NewStringCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("1714559400000-0")
	}
	return cmd
}

func TestRedisStreamSinkDeliver(t *testing.T) {
	rdb := &fakeRedis{}
	sink, err := NewRedisStreamSink(rdb, "", nil)
	require.NoError(t, err)

	req := widget.CallbackRequest{Name: "Jane", Phone: "+15551234567", Consent: true}
	require.NoError(t, sink.Deliver(context.Background(), req))
	require.Equal(t, defaultStream, rdb.args.Stream)

	values, ok := rdb.args.Values.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "+15551234567", values["phone"])
}

func TestRedisStreamSinkDeliverError(t *testing.T) {
	rdb := &fakeRedis{err: errors.New("connection refused")}
	sink, err := NewRedisStreamSink(rdb, "leads", nil)
	require.NoError(t, err)

	err = sink.Deliver(context.Background(), widget.CallbackRequest{Name: "Jane"})
	require.ErrorContains(t, err, "connection refused")
	require.Equal(t, "leads", rdb.args.Stream)
}
