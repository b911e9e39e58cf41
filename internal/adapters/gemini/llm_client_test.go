package gemini

import (
	"errors"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"isSupport":`), genai.Text(`true}`)}},
		}},
	}
	assert.Equal(t, `{"isSupport":true}`, responseText(resp))

	assert.Empty(t, responseText(nil))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{}))
	assert.Empty(t, responseText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}))
}

func TestMapError(t *testing.T) {
	var rl *core.RateLimitError
	assert.ErrorAs(t, mapError(status.Error(codes.ResourceExhausted, "quota")), &rl)
	assert.ErrorAs(t, mapError(&googleapi.Error{Code: http.StatusTooManyRequests}), &rl)

	var pe *core.ProviderError
	require.ErrorAs(t, mapError(status.Error(codes.Unauthenticated, "bad key")), &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
	assert.False(t, errors.Is(mapError(status.Error(codes.Unauthenticated, "bad key")), core.ErrAuthentication),
		"a bad model key is not the caller's authentication failure")

	require.ErrorAs(t, mapError(errors.New("dial tcp: refused")), &pe)
	assert.Equal(t, "gemini", pe.Provider)
}

func TestFactoryRequiresAPIKey(t *testing.T) {
	cfg := config.NewFromViper(config.NewEmptyViper())
	_, err := NewFactory(cfg, zaptest.NewLogger(t)).CreateLLMClient()
	assert.Error(t, err)
}
