package alert_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safenet/safenet/internal/alert"
	"github.com/safenet/safenet/internal/geo"
)

func testAlert() alert.Alert {
	return alert.Alert{
		ID:        "alr_test",
		Kind:      alert.KindEmergency,
		SubjectID: "sub_1",
		Location:  geo.Point{Lat: 52.37, Lon: 4.89},
		Message:   "help",
		CreatedAt: time.Now(),
	}
}

func fastConfig(name, url string) alert.WebhookConfig {
	return alert.WebhookConfig{
		Name:            name,
		URL:             url,
		Timeout:         time.Second,
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestWebhookDispatcher_Delivers(t *testing.T) {
	var received atomic.Int32
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a alert.Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		gotID = a.ID
		received.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := alert.NewWebhookDispatcher(fastConfig("primary", srv.URL))
	require.NoError(t, d.Dispatch(context.Background(), testAlert()))
	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, "alr_test", gotID)
}

func TestWebhookDispatcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := alert.NewWebhookDispatcher(fastConfig("primary", srv.URL))
	require.NoError(t, d.Dispatch(context.Background(), testAlert()))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookDispatcher_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	d := alert.NewWebhookDispatcher(fastConfig("primary", srv.URL))
	err := d.Dispatch(context.Background(), testAlert())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWebhookDispatcher_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := alert.NewWebhookDispatcher(fastConfig("primary", srv.URL))
	ctx := context.Background()

	// Burn through enough failures to trip the breaker.
	for i := 0; i < 3; i++ {
		_ = d.Dispatch(ctx, testAlert())
	}

	err := d.Dispatch(ctx, testAlert())
	require.ErrorIs(t, err, alert.ErrChannelUnavailable)
}
