package models

// Service states reported by GET /status.
const (
	StatusOperational           = "operational"
	StatusConfigurationRequired = "configuration_required"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status         string       `json:"status"`
	Model          string       `json:"model,omitempty"`
	EmbeddingModel string       `json:"embeddingModel,omitempty"`
	Details        string       `json:"details,omitempty"`
	Cache          *CacheStatus `json:"cache,omitempty"`
}

// CacheStatus describes the retrieval cache in a StatusResponse.
type CacheStatus struct {
	State        string  `json:"state"`
	GenerationID string  `json:"generationId,omitempty"`
	Documents    int     `json:"documents"`
	Chunks       int     `json:"chunks"`
	Dimensions   int     `json:"dimensions"`
	AgeSeconds   float64 `json:"ageSeconds"`
	Rebuilds     int64   `json:"rebuilds"`
	Failures     int64   `json:"failures"`
	LastError    string  `json:"lastError,omitempty"`
}

// MessageResponse is the body of POST /refresh.
type MessageResponse struct {
	Message string `json:"message"`
}
