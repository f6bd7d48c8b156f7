package comfyui

import (
	"encoding/json"
)

// Event is one message from the backend's event stream. Data holds the typed
// payload for the known event tags and is nil for unknown tags, which the
// listener ignores for forward compatibility.
type Event struct {
	Type string
	Data interface{}
}

func (e *Event) UnmarshalJSON(b []byte) error {
	// unmarshal into an anonymous shape first to avoid recursing into this
	// method
	var temp struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &temp); err != nil {
		return err
	}

	e.Type = temp.Type

	switch e.Type {
	case "status":
		e.Data = &StatusData{}
	case "execution_start":
		e.Data = &ExecutionStartData{}
	case "execution_cached":
		e.Data = &ExecutionCachedData{}
	case "executing":
		e.Data = &ExecutingData{}
	case "progress":
		e.Data = &ProgressData{}
	case "executed":
		e.Data = &ExecutedData{}
	case "execution_error":
		e.Data = &ExecutionErrorData{}
	default:
		e.Data = nil
	}

	if e.Data != nil && len(temp.Data) > 0 {
		if err := json.Unmarshal(temp.Data, e.Data); err != nil {
			return err
		}
	}

	return nil
}

// StatusData queue telemetry; informational only
type StatusData struct {
	Status struct {
		ExecInfo struct {
			QueueRemaining int `json:"queue_remaining"`
		} `json:"exec_info"`
	} `json:"status"`
}

// ExecutionStartData marks the backend picking up a submitted job
type ExecutionStartData struct {
	PromptID string `json:"prompt_id"`
}

// ExecutingData reports the node currently running. A nil Node signals the
// run may be winding down.
type ExecutingData struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

// ProgressData intra-step progress; many arrive per node
type ProgressData struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

// ExecutedData reports a completed node together with its outputs. Only
// outputs carrying image references are terminal for a generation.
type ExecutedData struct {
	Node     string     `json:"node"`
	Output   OutputData `json:"output"`
	PromptID string     `json:"prompt_id"`
}

// OutputData the output payload of an executed node
type OutputData struct {
	Images []ImageRef `json:"images"`
}

// ImageRef locates one generated image on the backend
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// ExecutionCachedData nodes satisfied from the backend cache; informational
type ExecutionCachedData struct {
	Nodes    []interface{} `json:"nodes"`
	PromptID string        `json:"prompt_id"`
}

// ExecutionErrorData backend-reported failure mid-graph
type ExecutionErrorData struct {
	PromptID         string   `json:"prompt_id"`
	Node             string   `json:"node_id"`
	NodeType         string   `json:"node_type"`
	ExceptionMessage string   `json:"exception_message"`
	ExceptionType    string   `json:"exception_type"`
	Traceback        []string `json:"traceback"`
}

// submission response and error shapes

type promptResponse struct {
	PromptID string `json:"prompt_id"`
	Number   int    `json:"number"`
}

type promptError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
	NodeErrors map[string]interface{} `json:"node_errors"`
}
