package embeddingapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLocalBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LocalConfig
		wantErr bool
	}{
		{"valid", LocalConfig{BaseURL: "http://localhost:8080", Model: "test", Dimensions: 384}, false},
		{"empty base URL", LocalConfig{BaseURL: "", Model: "test", Dimensions: 384}, true},
		{"zero dimensions", LocalConfig{BaseURL: "http://localhost:8080", Model: "test", Dimensions: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewLocalBackend(tt.cfg, zap.NewNop())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, b)
			assert.Equal(t, tt.cfg.Dimensions, b.Dimensions())
		})
	}
}

func TestLocalBackend_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([][]float32{{0.1, 0.2}, {0.3, 0.4}})
	}))
	defer srv.Close()

	b, err := NewLocalBackend(LocalConfig{BaseURL: srv.URL, Model: "test", Dimensions: 2}, zap.NewNop())
	require.NoError(t, err)

	vectors, err := b.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
}

func TestLocalBackend_Embed_EmptyInput(t *testing.T) {
	b, err := NewLocalBackend(LocalConfig{BaseURL: "http://localhost:8080", Model: "test", Dimensions: 2}, zap.NewNop())
	require.NoError(t, err)

	_, err = b.Embed(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestLocalBackend_Embed_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	b, err := NewLocalBackend(LocalConfig{BaseURL: srv.URL, Model: "test", Dimensions: 2}, zap.NewNop())
	require.NoError(t, err)

	_, err = b.Embed(context.Background(), []string{"a"})
	require.ErrorIs(t, err, ErrEmbeddingFailed)
}
