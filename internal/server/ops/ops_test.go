package ops

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/docvault/internal/logging"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestRouter(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		path string
		code int
		body string
	}{
		{"live", pinger{}, "/healthz/live", http.StatusOK, `"status":"ok"`},
		{"ready", pinger{}, "/healthz/ready", http.StatusOK, `"status":"ok"`},
		{"healthz", pinger{}, "/healthz", http.StatusOK, `"status":"ok"`},
		{"not ready", pinger{err: errors.New("refused")}, "/healthz/ready", http.StatusServiceUnavailable, `"status":"fail"`},
		{"metrics", pinger{}, "/metrics", http.StatusOK, "go_goroutines"},
		{"unknown", pinger{}, "/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewRouter(tt.db).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestServerStopsOnCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer("", NewRouter(pinger{}), logging.Nop(), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/healthz/live")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
