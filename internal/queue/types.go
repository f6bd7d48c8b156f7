package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/notify"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/workflow"
)

// Request one queued generation request. Owned by the queue from enqueue to
// completion; only the dispatcher mutates it after it is claimed.
type Request struct {
	ID         string
	UserID     string
	UserName   string
	Positive   string
	Negative   string
	Size       workflow.Size
	Mode       workflow.Mode
	BatchCount int
	// Denoise is only meaningful for img2img
	Denoise float64
	// InputImage is the attached source image; required iff Mode is img2img
	InputImage []byte
	// Reporter receives the job's lifecycle events
	Reporter   notify.Reporter
	EnqueuedAt time.Time
}

// NewRequest creates a request with a fresh id and enqueue timestamp
func NewRequest(userID, userName string) *Request {
	return &Request{
		ID:         uuid.New().String(),
		UserID:     userID,
		UserName:   userName,
		Size:       workflow.SizeVertical,
		Mode:       workflow.ModeTxt2Img,
		BatchCount: 1,
		EnqueuedAt: time.Now(),
	}
}

// Status a point-in-time snapshot of the queue
type Status struct {
	Processing   bool          `json:"processing"`
	CurrentUser  string        `json:"current_user,omitempty"`
	CurrentBatch int           `json:"current_batch,omitempty"`
	CurrentMode  workflow.Mode `json:"current_mode,omitempty"`
	Waiting      int           `json:"waiting"`
}

// Summary renders the snapshot for status displays
func (s Status) Summary() string {
	if s.Processing {
		return fmt.Sprintf("Processing: %s (x%d) [%s] | waiting: %d request(s)",
			s.CurrentUser, s.CurrentBatch, s.CurrentMode, s.Waiting)
	}
	if s.Waiting > 0 {
		return fmt.Sprintf("Waiting: %d request(s)", s.Waiting)
	}
	return "Queue is idle"
}
