package http

// APIResponse represents standard API response.
type APIResponse struct {
	Status  int    `json:"status" example:"200"`
	Message string `json:"message" example:"OK"`
	Data    any    `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string         `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string         `json:"field,omitempty" example:"symbol"`
	Message string         `json:"message,omitempty" example:"symbol is required"`
	Params  map[string]any `json:"params,omitempty"`
}

// ListDataResponse represents a list response.
type ListDataResponse struct {
	Rows  any   `json:"rows"`
	Total int64 `json:"total"`
}
