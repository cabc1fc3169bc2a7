package server

// Request types for WebSocket commands with validation tags.

// ControlRequest is the request body for control/set.
type ControlRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ThresholdUpdateRequest is the request body for detection/update.
type ThresholdUpdateRequest struct {
	Threshold *float64 `json:"threshold" validate:"required,gt=0,lte=1"`
}

// RecordingDeleteRequest is the request body for recordings/delete.
type RecordingDeleteRequest struct {
	Basename string `json:"basename" validate:"required,max=100"`
}
