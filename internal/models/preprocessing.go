package models

// PreprocessingRequest is sent to a remote preprocessing service
type PreprocessingRequest struct {
	FileName string `json:"fileName"`
	Code     string `json:"sourceCode"`
	Language string `json:"language"`
}

// PreprocessingResponse represents the response from the preprocessing API
type PreprocessingResponse struct {
	Language      string            `json:"language"`
	Preprocessing PreprocessingData `json:"preprocessing"`
}

// PreprocessingData contains the preprocessing results
type PreprocessingData struct {
	Tokens           []string `json:"tokens"`
	NormalizedTokens []string `json:"normalizedTokens"`
}

// PreprocessingError represents an error response from the preprocessing API
type PreprocessingError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
