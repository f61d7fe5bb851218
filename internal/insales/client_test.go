package insales

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithOptions(&http.Client{Timeout: 2 * time.Second}, srv.URL+"/%s/admin/account.json")
}

func respondJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFetchAccountRequest(t *testing.T) {
	var gotPath, gotUser, gotPass string
	var gotAuth bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, gotAuth = r.BasicAuth()
		fmt.Fprint(w, `{"paid_till":"2024-01-20"}`)
	})

	info, err := client.FetchAccount(context.Background(), "shop.myinsales.ru", "key", "secret")
	require.NoError(t, err)

	assert.Equal(t, "/shop.myinsales.ru/admin/account.json", gotPath)
	assert.True(t, gotAuth)
	assert.Equal(t, "key", gotUser)
	assert.Equal(t, "secret", gotPass)
	require.NotNil(t, info.PaidTill)
	assert.Equal(t, date(2024, 1, 20), *info.PaidTill)
}

func TestFetchAccountPayloadShapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected *time.Time
	}{
		{name: "root", body: `{"id":1,"paid_till":"2024-03-01"}`, expected: ptr(date(2024, 3, 1))},
		{name: "nested", body: `{"account":{"paid_till":"2024-04-02"}}`, expected: ptr(date(2024, 4, 2))},
		{name: "nested wins over root", body: `{"paid_till":"2024-01-01","account":{"paid_till":"2024-05-05"}}`, expected: ptr(date(2024, 5, 5))},
		{name: "nested without date", body: `{"paid_till":"2024-01-01","account":{"title":"x"}}`, expected: nil},
		{name: "non-object account key falls back to root", body: `{"account":"legacy","paid_till":"2024-06-06"}`, expected: ptr(date(2024, 6, 6))},
		{name: "absent", body: `{"title":"shop"}`, expected: nil},
		{name: "null", body: `{"paid_till":null}`, expected: nil},
		{name: "empty string", body: `{"paid_till":""}`, expected: nil},
		{name: "timestamp", body: `{"paid_till":"2024-07-07T10:00:00+03:00"}`, expected: ptr(date(2024, 7, 7))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, respondJSON(tt.body))
			info, err := client.FetchAccount(context.Background(), "shop.example", "k", "p")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, info.PaidTill)
		})
	}
}

func TestFetchAccountParseErrors(t *testing.T) {
	bodies := map[string]string{
		"malformed date": `{"paid_till":"20.01.2024"}`,
		"number date":    `{"paid_till":20240120}`,
		"array payload":  `[{"paid_till":"2024-01-20"}]`,
		"not json":       `<html>maintenance</html>`,
		"null payload":   `null`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, respondJSON(body))
			_, err := client.FetchAccount(context.Background(), "shop.example", "k", "p")

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr), "expected ParseError, got %v", err)
			assert.Equal(t, "parse", Kind(err))
		})
	}
}

func TestFetchAccountNetworkErrors(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusInternalServerError} {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				fmt.Fprint(w, `{"errors":"nope"}`)
			})
			_, err := client.FetchAccount(context.Background(), "shop.example", "k", "s3cr3t")

			var netErr *NetworkError
			require.True(t, errors.As(err, &netErr))
			assert.Equal(t, status, netErr.StatusCode)
			assert.Equal(t, "network", Kind(err))
			assert.NotContains(t, err.Error(), "s3cr3t")
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		client := NewClientWithOptions(&http.Client{Timeout: time.Second}, addr+"/%s")
		_, err := client.FetchAccount(context.Background(), "shop.example", "k", "p")

		var netErr *NetworkError
		require.True(t, errors.As(err, &netErr))
		assert.Equal(t, 0, netErr.StatusCode)
	})

	t.Run("context deadline", func(t *testing.T) {
		release := make(chan struct{})
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.FetchAccount(ctx, "shop.example", "k", "p")
		var netErr *NetworkError
		require.True(t, errors.As(err, &netErr))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestKind(t *testing.T) {
	assert.Equal(t, "network", Kind(fmt.Errorf("wrapped: %w", &NetworkError{Err: errors.New("x")})))
	assert.Equal(t, "other", Kind(errors.New("plain")))
}

func ptr(t time.Time) *time.Time { return &t }
