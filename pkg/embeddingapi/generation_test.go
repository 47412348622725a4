package embeddingapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudGenerationBackend_Stream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"Hello", ", ", "world"}
		for _, c := range chunks {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
		}
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	backend, err := NewCloudGenerationBackend(CloudConfig{BaseURL: srv.URL, APIKey: "sk-test", Dimensions: 1})
	require.NoError(t, err)

	next, err := backend.Stream(context.Background(), "say hello")
	require.NoError(t, err)

	var out string
	for {
		chunk, ok, err := next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out += chunk.Text
		if chunk.Done {
			break
		}
	}

	assert.Equal(t, "Hello, world", out)
}
