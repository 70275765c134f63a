package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSeriesURL(t *testing.T) {
	u, err := TimeSeriesURL("https://portal.example.test/base/", "face_landmark")
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.test/base/v6/time_series/face_landmark", u)

	_, err = TimeSeriesURL("portal.example.test", "face_landmark")
	assert.Error(t, err)
}

func TestWebhook_Posts(t *testing.T) {
	var got struct {
		SessionGUID string            `json:"sessionGUID"`
		SeriesType  string            `json:"seriesType"`
		Data        []json.RawMessage `json:"data"`
	}
	var path, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	w, err := NewWebhook(srv.URL, "face_landmark", "sess-42")
	require.NoError(t, err)
	require.NoError(t, w.Send(context.Background(), frames(2)))

	assert.Equal(t, "/v6/time_series/face_landmark", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "sess-42", got.SessionGUID)
	assert.Equal(t, "face_landmark", got.SeriesType)
	require.Len(t, got.Data, 2)
	assert.JSONEq(t, `{"l":[],"t":1001,"dt":2}`, string(got.Data[1]))
}

func TestWebhook_EmptyBatch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	w, err := NewWebhook(srv.URL, "face_landmark", "s")
	require.NoError(t, err)
	require.NoError(t, w.Send(context.Background(), nil))
	assert.Zero(t, calls.Load())
}

func TestWebhook_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, err := NewWebhook(srv.URL, "face_landmark", "s", WithWebhookBackoff(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Send(context.Background(), frames(1)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhook_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w, err := NewWebhook(srv.URL, "face_landmark", "s",
		WithWebhookRetries(2), WithWebhookBackoff(time.Millisecond))
	require.NoError(t, err)

	err = w.Send(context.Background(), frames(1))
	assert.ErrorContains(t, err, "all retries exhausted")
	assert.ErrorContains(t, err, "status 502")
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhook_ClientErrors(t *testing.T) {
	tests := []struct {
		status    int
		wantCalls int32
	}{
		{http.StatusBadRequest, 1},
		{http.StatusNotFound, 1},
		{http.StatusUnprocessableEntity, 1},
		{http.StatusRequestTimeout, 3},
		{http.StatusTooManyRequests, 3},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			w, err := NewWebhook(srv.URL, "face_landmark", "s",
				WithWebhookRetries(2), WithWebhookBackoff(time.Millisecond))
			require.NoError(t, err)

			err = w.Send(context.Background(), frames(1))
			assert.ErrorContains(t, err, fmt.Sprintf("status %d", tt.status))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestWebhook_StopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w, err := NewWebhook(srv.URL, "face_landmark", "s", WithWebhookBackoff(time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Send(ctx, frames(1)), context.DeadlineExceeded)
}
