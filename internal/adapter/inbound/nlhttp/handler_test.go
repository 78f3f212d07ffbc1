package nlhttp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlbridge/nlbridge/internal/adapter/inbound/nlhttp"
	"github.com/nlbridge/nlbridge/internal/domain"
)

type stubProcessor struct {
	reply string
	err   error
	ready bool

	lastMessage string
}

func (p *stubProcessor) Process(_ context.Context, userMessage string) (string, error) {
	p.lastMessage = userMessage
	return p.reply, p.err
}

func (p *stubProcessor) Ready() bool { return p.ready }

func newTestServer(t *testing.T, processor *stubProcessor) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	router := mux.NewRouter()
	nlhttp.NewHandlers(processor, logger).Register(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func postCommand(t *testing.T, url, body string) (*http.Response, map[string]string) {
	t.Helper()
	resp, err := http.Post(url+"/api/nl/command", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var parsed map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func TestHandleCommand(t *testing.T) {
	assert := assert.New(t)

	t.Run("success", func(t *testing.T) {
		processor := &stubProcessor{reply: "You have 5 products.", ready: true}
		server := newTestServer(t, processor)

		resp, body := postCommand(t, server.URL, `{"message":"list products"}`)
		assert.Equal(http.StatusOK, resp.StatusCode)
		assert.Equal("You have 5 products.", body["reply"])
		assert.Equal("list products", processor.lastMessage)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		server := newTestServer(t, &stubProcessor{ready: true})

		resp, body := postCommand(t, server.URL, `{not json`)
		assert.Equal(http.StatusBadRequest, resp.StatusCode)
		assert.Contains(body["error"], "invalid request body")
	})

	t.Run("blank message", func(t *testing.T) {
		server := newTestServer(t, &stubProcessor{ready: true})

		resp, body := postCommand(t, server.URL, `{"message":"   "}`)
		assert.Equal(http.StatusBadRequest, resp.StatusCode)
		assert.Equal("message field is required", body["error"])
	})

	t.Run("not ready maps to 503", func(t *testing.T) {
		processor := &stubProcessor{err: domain.ErrNotReady}
		server := newTestServer(t, processor)

		resp, body := postCommand(t, server.URL, `{"message":"list products"}`)
		assert.Equal(http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal("still initializing, please retry", body["error"])
	})

	t.Run("upstream failure maps to 502", func(t *testing.T) {
		processor := &stubProcessor{
			err:   fmt.Errorf("%w: HTTP 500: boom", domain.ErrUpstreamFailure),
			ready: true,
		}
		server := newTestServer(t, processor)

		resp, body := postCommand(t, server.URL, `{"message":"list products"}`)
		assert.Equal(http.StatusBadGateway, resp.StatusCode)
		assert.Contains(body["error"], "HTTP 500")
	})

	t.Run("processing failure maps to 500", func(t *testing.T) {
		processor := &stubProcessor{err: fmt.Errorf("model unavailable"), ready: true}
		server := newTestServer(t, processor)

		resp, body := postCommand(t, server.URL, `{"message":"list products"}`)
		assert.Equal(http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(body["error"], "model unavailable")
	})
}

func TestHandleHealth(t *testing.T) {
	t.Run("initializing", func(t *testing.T) {
		server := newTestServer(t, &stubProcessor{ready: false})

		resp, err := http.Get(server.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("ready", func(t *testing.T) {
		server := newTestServer(t, &stubProcessor{ready: true})

		resp, err := http.Get(server.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
