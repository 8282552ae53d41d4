package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/support-widget/backend/internal/config"
	"github.com/zhouzirui/support-widget/backend/internal/model/widget"
	widgetService "github.com/zhouzirui/support-widget/backend/internal/service/widget"
)

func runFAQ(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newFAQCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFAQCommandText(t *testing.T) {
	out, err := runFAQ(t, "maintenance")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Do you offer website maintenance?")
	assert.NotContains(t, out, "2.")
}

func TestFAQCommandNoMatch(t *testing.T) {
	out, err := runFAQ(t, "zzzz")
	require.NoError(t, err)
	assert.Equal(t, "no matching questions\n", out)
}

func TestFAQCommandYAMLRoundTrips(t *testing.T) {
	out, err := runFAQ(t, "-o", "yaml")
	require.NoError(t, err)

	parsed, err := widget.ParseCatalog([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, widget.MustCatalog(), parsed)
}

func TestFAQCommandRejectsUnknownFormat(t *testing.T) {
	_, err := runFAQ(t, "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestJanitorInterval(t *testing.T) {
	assert.Zero(t, janitorInterval(0))
	assert.Equal(t, time.Second, janitorInterval(2*time.Second))
	assert.Equal(t, 5*time.Minute, janitorInterval(20*time.Minute))
}

func TestReplyDelay(t *testing.T) {
	assert.Equal(t, widgetService.DefaultReplyDelay, replyDelay(nil, false))
	assert.Zero(t, replyDelay(nil, true))

	configured := 250 * time.Millisecond
	assert.Equal(t, configured, replyDelay(&configured, true))
	assert.Equal(t, configured, replyDelay(&configured, false))

	zero := time.Duration(0)
	assert.Zero(t, replyDelay(&zero, false))
}

func TestNewResponderFallsBackToCanned(t *testing.T) {
	responder, live := newResponder(context.Background(), config.AIConfig{}, widget.DefaultAssistant(), nil, zap.NewNop())
	assert.False(t, live)
	assert.IsType(t, widgetService.CannedResponder{}, responder)
}

func TestRunServerStopsOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runServer did not return after cancel")
	}
}
