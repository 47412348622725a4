package embeddingapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewCloudBackend(t *testing.T) {
	_, err := NewCloudBackend(CloudConfig{APIKey: "", Dimensions: 1536}, zap.NewNop())
	require.Error(t, err)

	b, err := NewCloudBackend(CloudConfig{APIKey: "sk-test", Dimensions: 1536}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1536, b.Dimensions())
}

func TestCloudBackend_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req cloudEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := cloudEmbedResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), float32(i) + 0.5}, Index: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	b, err := NewCloudBackend(CloudConfig{BaseURL: srv.URL, APIKey: "sk-test", Dimensions: 2}, zap.NewNop())
	require.NoError(t, err)

	vectors, err := b.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 0.5}, vectors[0])
	assert.Equal(t, []float32{1, 1.5}, vectors[1])
}

func TestCloudBackend_Embed_RetriesOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(cloudErrorResponse{})
			return
		}
		_ = json.NewEncoder(w).Encode(cloudEmbedResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}{{Embedding: []float32{1, 2}, Index: 0}}})
	}))
	defer srv.Close()

	b, err := NewCloudBackend(CloudConfig{BaseURL: srv.URL, APIKey: "sk-test", Dimensions: 2}, zap.NewNop())
	require.NoError(t, err)

	vectors, err := b.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCloudBackend_Embed_NoRetryOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(cloudErrorResponse{})
	}))
	defer srv.Close()

	b, err := NewCloudBackend(CloudConfig{BaseURL: srv.URL, APIKey: "sk-bad", Dimensions: 2}, zap.NewNop())
	require.NoError(t, err)

	_, err = b.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
