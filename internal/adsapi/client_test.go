package adsapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/sponsorskip/internal/types"
)

const fp = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL+"/bilisponsor/", server.Client())
	require.NoError(t, err)
	return c
}

func TestLookupHit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/bilisponsor/ads/sha256/"+fp, r.URL.Path)
		io.WriteString(w, `{"ads":[{"start_time":30,"end_time":45,"topic":"Sponsor"}]}`)
	})

	segs, err := c.Lookup(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, []types.Segment{{StartTime: 30, EndTime: 45, Topic: "Sponsor"}}, segs)
}

func TestLookupMissIsBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"error":"not found"}`)
	})

	_, err := c.Lookup(context.Background(), fp)
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "not found", be.Reason)
	assert.Equal(t, "lookup", be.Op)
}

func TestLookupEmptyAdsIsHit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ads":[]}`)
	})

	segs, err := c.Lookup(context.Background(), fp)
	require.NoError(t, err)
	assert.NotNil(t, segs)
	assert.Empty(t, segs)
}

func TestComputePostsRawTranscript(t *testing.T) {
	const transcript = `{"body":[{"from":1,"to":2,"content":"hi"}]}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bilisponsor/ads/text", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, transcript, string(body))
		io.WriteString(w, `{"ads":[{"start_time":10,"end_time":20,"topic":"Ad"}],"sha256":"x"}`)
	})

	segs, err := c.Compute(context.Background(), transcript)
	require.NoError(t, err)
	assert.Equal(t, []types.Segment{{StartTime: 10, EndTime: 20, Topic: "Ad"}}, segs)
}

func TestErrorTagOnFailureStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, `{"error":"detector unavailable"}`)
	})

	_, err := c.Compute(context.Background(), "x")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "detector unavailable", be.Reason)
}

func TestNonSuccessStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Lookup(context.Background(), fp)
	assert.True(t, errors.Is(err, ErrStatus), "got %v", err)
}

func TestMalformedResponses(t *testing.T) {
	cases := map[string]string{
		"not json":       `<html>`,
		"inverted range": `{"ads":[{"start_time":50,"end_time":40,"topic":"x"}]}`,
		"negative start": `{"ads":[{"start_time":-3,"end_time":4,"topic":"x"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			})
			_, err := c.Lookup(context.Background(), fp)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("not a url", nil)
	assert.Error(t, err)
}
