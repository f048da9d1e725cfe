package ical

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"deadline-desk/backend/config"
	pkgerrors "deadline-desk/backend/pkg/errors"
)

const sampleFeed = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

func newTestFetcher(maxSize int64) *Fetcher {
	return NewFetcher(&config.ICalConfig{FetchTimeout: 2 * time.Second, MaxSizeBytes: maxSize}, zap.NewNop())
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/feed.ics", r.URL.Path)
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	raw, err := newTestFetcher(1024).Fetch(context.Background(), srv.URL+"/feed.ics")
	require.NoError(t, err)
	assert.Equal(t, sampleFeed, raw)
}

func TestFetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(1024).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, pkgerrors.ErrFetch)
}

func TestFetch_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("X", 2048)))
	}))
	defer srv.Close()

	_, err := newTestFetcher(1024).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, pkgerrors.ErrFetch)
}

func TestFetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestFetcher(1024).Fetch(context.Background(), url)
	assert.ErrorIs(t, err, pkgerrors.ErrFetch)
}

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://lk.example.edu/a.ics", normalizeURL(" webcal://lk.example.edu/a.ics "))
	assert.Equal(t, "https://lk.example.edu/a.ics", normalizeURL("WEBCAL://lk.example.edu/a.ics"))
	assert.Equal(t, "http://lk.example.edu/a.ics", normalizeURL("http://lk.example.edu/a.ics"))
}
