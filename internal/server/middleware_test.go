package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrument_RecordsStatus(t *testing.T) {
	server := New(Config{})
	handler := server.instrument("/teapot", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	counter := server.metrics.requestsTotal.WithLabelValues(http.MethodGet, "/teapot", http.StatusText(http.StatusTeapot))
	assert.InDelta(t, 1.0, promtest.ToFloat64(counter), 1e-12)
}

func TestGetOnly(t *testing.T) {
	called := false
	handler := getOnly(func(http.ResponseWriter, *http.Request) { called = true })

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodDelete, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.False(t, called)

	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil))
	assert.True(t, called)
}
