package gemini

import (
	"testing"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"

	"github.com/go-go-golems/bookchat/pkg/conversation"
	"github.com/go-go-golems/bookchat/pkg/engine"
)

func TestExtractTextJoinsParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []genai.Part{genai.Text("The whale "), genai.Text("symbolizes obsession.")},
				},
			},
		},
	}

	assert.Equal(t, "The whale symbolizes obsession.", ExtractText(resp))
}

func TestExtractTextFallsBackToLaterCandidate(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{
				Content: &genai.Content{
					Parts: []genai.Part{genai.Text("fallback answer")},
				},
			},
		},
	}

	assert.Equal(t, "fallback answer", ExtractText(resp))
}

func TestExtractTextEmptyResponse(t *testing.T) {
	assert.Equal(t, "", ExtractText(nil))
	assert.Equal(t, "", ExtractText(&genai.GenerateContentResponse{}))
}

func TestContentsFromRequestRoleMapping(t *testing.T) {
	req := &engine.ChatRequest{
		System: "stay on topic",
		Turns: []engine.Turn{
			{Role: conversation.RoleAssistant, Text: "hello"},
			{Role: conversation.RoleUser, Text: "what does this symbolize?"},
		},
	}

	contents := contentsFromRequest(req)

	assert.Len(t, contents, 4)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "model", contents[2].Role)
	assert.Equal(t, "user", contents[3].Role)
	assert.Equal(t, genai.Text("what does this symbolize?"), contents[3].Parts[0])
}
