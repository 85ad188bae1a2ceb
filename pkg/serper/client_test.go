package serper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/catalog-updater/internal/resilience"
)

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "serper-key", r.Header.Get("X-API-KEY"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "glioma MRI dataset", req.Q)
		assert.Equal(t, 5, req.Num)

		w.Write([]byte(`{"organic":[{"title":"BraTS","link":"https://www.synapse.org/brats","position":1},{"title":"no link"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	got, err := NewClient("serper-key", WithBaseURL(srv.URL)).Search(context.Background(), "glioma MRI dataset", 5)
	require.NoError(t, err)
	require.Len(t, got.Organic, 2)
	assert.Equal(t, "https://www.synapse.org/brats", got.Organic[0].Link)
	assert.Equal(t, "", got.Organic[1].Link)
}

func TestSearch_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestSearch_Forbidden(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Unauthorized."}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.False(t, resilience.IsTransient(err))
}
