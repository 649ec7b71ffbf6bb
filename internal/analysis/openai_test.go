package analysis

import (
	"context"
	"encoding/json"
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
	return NewClient(srv.URL, "sk-test", "gpt-4-turbo-preview", 0.7, 2000, 5*time.Second)
}

func TestAnalyze_SubstitutesPortfolioIntoPrompt(t *testing.T) {
	var got chatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Alles im grünen Bereich."}},
			},
		})
	})

	result, err := c.Analyze(context.Background(),
		"Analysiere:\n{portfolio_data}\nDanke.", "AKTUELLES PORTFOLIO: leer")
	require.NoError(t, err)
	assert.Equal(t, "Alles im grünen Bereich.", result)

	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Analysiere:\nAKTUELLES PORTFOLIO: leer\nDanke.", got.Messages[0].Content)
	assert.Equal(t, "gpt-4-turbo-preview", got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 2000, got.MaxTokens)
}

func TestAnalyze_StatusErrorIsDiscriminated(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit"}}`))
	})

	_, err := c.Analyze(context.Background(), "{portfolio_data}", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPIStatus)
	assert.Contains(t, err.Error(), "429")
}

func TestAnalyze_EmptyChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	_, err := c.Analyze(context.Background(), "{portfolio_data}", "x")
	assert.ErrorIs(t, err, ErrNoChoices)
}
