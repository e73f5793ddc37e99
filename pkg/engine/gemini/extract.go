package gemini

import (
	genai "github.com/google/generative-ai-go/genai"
)

// Response shapes vary across SDK versions and safety outcomes, so text
// extraction is an ordered list of total strategies tried in sequence. The
// empty string means nothing was extractable; the caller decides on a
// placeholder.
type extractor func(resp *genai.GenerateContentResponse) (string, bool)

var extractors = []extractor{
	extractFirstCandidateText,
	extractAnyCandidateText,
}

// ExtractText pulls a flat text answer out of a Gemini response. It never
// fails; an unextractable response yields "".
func ExtractText(resp *genai.GenerateContentResponse) string {
	for _, extract := range extractors {
		if text, ok := extract(resp); ok {
			return text
		}
	}
	return ""
}

// extractFirstCandidateText joins the text parts of the first candidate,
// the expected shape of a normal completion.
func extractFirstCandidateText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	return candidateText(resp.Candidates[0])
}

// extractAnyCandidateText falls back to the first candidate with any text at
// all, for responses where the primary candidate was empty or blocked.
func extractAnyCandidateText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, cand := range resp.Candidates {
		if text, ok := candidateText(cand); ok {
			return text, true
		}
	}
	return "", false
}

func candidateText(cand *genai.Candidate) (string, bool) {
	if cand == nil || cand.Content == nil {
		return "", false
	}
	text := ""
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", false
	}
	return text, true
}
