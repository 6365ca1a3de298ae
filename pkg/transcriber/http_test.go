package transcriber

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTranscribe(t *testing.T) {
	var waitCalls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/transcribe/raw":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "secret", r.Header.Get("x-token"))
			assert.Equal(t, "s16le", r.URL.Query().Get("format"))
			assert.Equal(t, "48000", r.URL.Query().Get("sample_rate"))
			assert.Equal(t, "2", r.URL.Query().Get("channels"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Equal(t, []byte{1, 2, 3, 4}, body)

			_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "req-1"})

		case "/result/req-1/wait":
			assert.Equal(t, "secret", r.Header.Get("x-token"))
			if waitCalls.Add(1) == 1 {
				// First poll: still queued.
				pos := 3
				_ = json.NewEncoder(w).Encode(map[string]interface{}{"status": "queued", "queue_position": pos})
				return
			}
			// Segments arrive out of order; the client must sort by start.
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{
					"segments": []map[string]interface{}{
						{"start": 2.5, "text": " world"},
						{"start": 0.0, "text": "hello"},
					},
				},
			})

		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	defer func() { _ = client.Close() }()

	text, err := client.Transcribe(context.Background(), []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.GreaterOrEqual(t, waitCalls.Load(), int32(2))
}

func TestClientSubmitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid audio"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	_, err := client.Transcribe(context.Background(), []byte{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid audio")
}

func TestClientWaitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/transcribe/raw" {
			_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "req-1"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "model crashed"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	_, err := client.Transcribe(context.Background(), []byte{1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model crashed")
}

func TestClientMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret")
	_, err := client.Transcribe(context.Background(), []byte{1, 2})
	assert.Error(t, err)
}

func TestClientHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/transcribe/raw" {
			_ = json.NewEncoder(w).Encode(map[string]string{"request_id": "req-1"})
			return
		}
		// Perpetually pending.
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "in_progress"})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, "secret")
	_, err := client.Transcribe(ctx, []byte{1, 2})
	assert.Error(t, err)
}

func TestJoinSegments(t *testing.T) {
	assert.Equal(t, "", joinSegments(nil))
	assert.Equal(t, "a b c", joinSegments([]Segment{
		{Start: 3, Text: " c"},
		{Start: 1, Text: "a"},
		{Start: 2, Text: " b"},
	}))
}

func TestMockTranscriber(t *testing.T) {
	mock := &MockTranscriber{Response: "circle pause"}
	text, err := mock.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "circle pause", text)
	assert.NoError(t, mock.Close())
}
