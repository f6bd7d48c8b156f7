package api

// GenerateRequest headless generation request. txt2img only: img2img needs a
// source image, which this surface does not accept.
type GenerateRequest struct {
	Positive string `json:"positive" binding:"required"`
	Negative string `json:"negative"`
	Size     string `json:"size"`
	Count    int    `json:"count"`
	Mode     string `json:"mode"`
}

// GenerateResponse returned after the request lands in the queue
type GenerateResponse struct {
	RequestID string `json:"request_id"`
	Position  int    `json:"position"`
}

// QueueStatusResponse point-in-time queue snapshot
type QueueStatusResponse struct {
	Processing  bool   `json:"processing"`
	CurrentUser string `json:"current_user,omitempty"`
	Waiting     int    `json:"waiting"`
	Summary     string `json:"summary"`
}
