package overpass

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/zatekoja/caremarket/backend/pkg/errors"
)

func TestHTTPTransport_DecodesElements(t *testing.T) {
	var gotQuery, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseForm())
		gotQuery = r.PostForm.Get("data")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"elements":[
			{"type":"node","id":123,"lat":-26.1715,"lon":28.0416,"tags":{"amenity":"hospital","name":"A"}},
			{"type":"way","id":"w45","center":{"lat":-25.7,"lon":28.2},"tags":{"amenity":"clinic"}}
		]}`))
	}))
	defer server.Close()

	transport := NewHTTPTransport(5*time.Second, "test-agent")
	elements, err := transport.Query(context.Background(), server.URL, "[out:json];node;out;")

	require.NoError(t, err)
	assert.Equal(t, "[out:json];node;out;", gotQuery)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
	require.Len(t, elements, 2)

	assert.Equal(t, "node", elements[0].Type)
	assert.EqualValues(t, "123", elements[0].ID)
	require.NotNil(t, elements[0].Lat)
	assert.InDelta(t, -26.1715, *elements[0].Lat, 1e-9)

	assert.EqualValues(t, "w45", elements[1].ID)
	assert.Nil(t, elements[1].Lat)
	require.NotNil(t, elements[1].Center)
	assert.InDelta(t, 28.2, elements[1].Center.Lon, 1e-9)
}

func TestHTTPTransport_ClassifiesFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected apperrors.ErrorType
	}{
		{name: "too many requests", status: http.StatusTooManyRequests, expected: apperrors.ErrorTypeRateLimited},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, expected: apperrors.ErrorTypeRateLimited},
		{name: "server error", status: http.StatusInternalServerError, expected: apperrors.ErrorTypeTransient},
		{name: "bad request", status: http.StatusBadRequest, expected: apperrors.ErrorTypeTransient},
		{name: "malformed body", status: http.StatusOK, body: `{"elements":[`, expected: apperrors.ErrorTypeTransient},
		{
			name:     "runtime error remark",
			status:   http.StatusOK,
			body:     `{"elements":[],"remark":"runtime error: Query timed out in \"query\" at line 1 after 61 seconds."}`,
			expected: apperrors.ErrorTypeRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			elements, err := NewHTTPTransport(5*time.Second, "").Query(context.Background(), server.URL, "q")

			assert.Nil(t, elements)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.expected), "got %v", err)
		})
	}
}

func TestHTTPTransport_ConnectionErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPTransport(time.Second, "").Query(context.Background(), url, "q")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTransient))
}

func TestHTTPTransport_CancelledContextPassesThrough(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := NewHTTPTransport(5*time.Second, "").Query(ctx, server.URL, "q")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperrors.IsType(err, apperrors.ErrorTypeTransient))
}
