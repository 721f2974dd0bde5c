package models

// NoRelevantContentMessage is returned as the answer text when no chunk clears the relevance threshold.
const NoRelevantContentMessage = "No relevant course content was found for this question."

// ScoredChunk is one ranked retrieval hit. Score is cosine similarity in [-1, 1].
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Answer is the orchestrator's result for one question.
type Answer struct {
	Text              string        `json:"answer"`
	Sources           []string      `json:"sources"`
	Confidence        float64       `json:"confidence"`
	NoRelevantContent bool          `json:"noRelevantContent,omitempty"`
	Matches           []ScoredChunk `json:"matches,omitempty"`
	GenerationID      string        `json:"generationId,omitempty"`
	RequestID         string        `json:"requestId,omitempty"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the body returned by POST /ask.
type AskResponse struct {
	Answer            string   `json:"answer"`
	Sources           []string `json:"sources"`
	Confidence        float64  `json:"confidence"`
	ResponseTime      int64    `json:"responseTime"`
	NoRelevantContent bool     `json:"noRelevantContent,omitempty"`
	RequestID         string   `json:"requestId,omitempty"`
}

// ErrorResponse is the body of every non-2xx HTTP response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
