package rate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConversionRate_AddsMarkup(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"Valute":{"USD":{"Value":81.5},"EUR":{"Value":90.1}}}`)

	p := NewProvider(srv.URL, 95.0, 1.0, time.Second)

	assert.InDelta(t, 82.5, p.ConversionRate(context.Background()), 1e-9)
}

func TestConversionRate_Fallback(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{}`},
		{"bad json", http.StatusOK, `not json`},
		{"missing usd", http.StatusOK, `{"Valute":{"EUR":{"Value":90.1}}}`},
		{"missing value", http.StatusOK, `{"Valute":{"USD":{}}}`},
		{"zero value", http.StatusOK, `{"Valute":{"USD":{"Value":0}}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newServer(t, tc.status, tc.body)
			p := NewProvider(srv.URL, 95.0, 1.0, time.Second)

			assert.Equal(t, 95.0, p.ConversionRate(context.Background()))
		})
	}
}

func TestConversionRate_Unreachable(t *testing.T) {
	p := NewProvider("http://127.0.0.1:1/daily_json.js", 95.0, 1.0, 200*time.Millisecond)

	assert.Equal(t, 95.0, p.ConversionRate(context.Background()))
}
