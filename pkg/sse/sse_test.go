package sse_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictusops/invictus/pkg/sse"
)

func TestStreamFrames(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/live", nil)

	s, err := sse.New(rec, req)
	require.NoError(t, err)
	require.NoError(t, s.Retry(3000))
	require.NoError(t, s.Send("toast", []string{"New task"}))
	require.NoError(t, s.Comment("ping"))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "retry: 3000\n\nevent: toast\ndata: [\"New task\"]\n\n: ping\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestStreamClosedContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/api/live", nil).WithContext(ctx)

	s, err := sse.New(httptest.NewRecorder(), req)
	require.NoError(t, err)
	cancel()

	<-s.Done()
	assert.Error(t, s.Send("view", map[string]int{"n": 1}))
}
