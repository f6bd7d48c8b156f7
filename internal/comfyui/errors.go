package comfyui

import "fmt"

// ConnectError reports a failure to open the event stream before submission
type ConnectError struct {
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to event stream: %v", e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SubmitError reports a rejected or failed workflow submission
type SubmitError struct {
	Detail string
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("workflow submission rejected: %s", e.Detail)
	}
	return fmt.Sprintf("workflow submission failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// ConnectionLostError reports the event stream dropping before a terminal
// event was seen
type ConnectionLostError struct {
	Err error
}

func (e *ConnectionLostError) Error() string {
	return fmt.Sprintf("event stream closed before completion: %v", e.Err)
}

func (e *ConnectionLostError) Unwrap() error { return e.Err }

// UploadError reports a failed source image upload; raised before any graph
// is mutated or submitted
type UploadError struct {
	Detail string
	Err    error
}

func (e *UploadError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("image upload failed: %s", e.Detail)
	}
	return fmt.Sprintf("image upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// FetchError reports a failure to retrieve a generated artifact. Generation
// succeeded, but an unreachable artifact is as bad as no artifact.
type FetchError struct {
	Filename string
	Status   int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch artifact %s: %v", e.Filename, e.Err)
	}
	return fmt.Sprintf("failed to fetch artifact %s: status %d", e.Filename, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExecutionError reports a backend-side failure mid-graph
type ExecutionError struct {
	NodeID   string
	NodeType string
	Detail   string
}

func (e *ExecutionError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("execution failed at node %s (%s): %s", e.NodeID, e.NodeType, e.Detail)
	}
	return fmt.Sprintf("execution failed: %s", e.Detail)
}
