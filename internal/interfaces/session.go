package interfaces

import (
	"context"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/comfyui"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/workflow"
)

// SessionClient drives one request-to-artifact generation session
type SessionClient interface {
	// Run submits the mutated graph and tracks its execution until an
	// artifact is produced or the run fails. titles maps node id to
	// display title for step labels.
	Run(ctx context.Context, graph workflow.Graph, titles map[string]string, cb *comfyui.Callbacks) (*comfyui.Artifact, error)

	// UploadImage pushes an img2img source image to the backend and
	// returns the server-assigned filename.
	UploadImage(ctx context.Context, data []byte) (string, error)

	// ClientID returns the process-lifetime client identity.
	ClientID() string
}
