package comfyui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/workflow"
)

// Artifact is one generated image fetched from the backend
type Artifact struct {
	Data      []byte
	Filename  string
	Subfolder string
	Type      string
}

// Callbacks receive display-only signals while a session is listening. Either
// field may be nil.
type Callbacks struct {
	OnNodeExecuting func(title string)
	OnProgress      func(value, max int)
}

// Client drives request-to-artifact sessions against one ComfyUI server. The
// client identity is drawn once at construction and tags every submission so
// the backend routes events to our stream; it stays stable for the process
// lifetime.
type Client struct {
	address    string
	clientID   string
	httpClient *http.Client
	dialer     websocket.Dialer
	logger     *logrus.Logger
}

// NewClient creates a ComfyUI session client
func NewClient(cfg config.ComfyUIConfig) *Client {
	return &Client{
		address: cfg.Address,
		// one identity per process
		clientID: uuid.New().String(),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		dialer: websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		logger: config.NewLogger(),
	}
}

// ClientID returns the process-lifetime identity tagging every submission
func (c *Client) ClientID() string {
	return c.clientID
}

// Run executes one generation session: it opens the event stream, submits the
// mutated graph, tracks execution until an image is produced or the run
// fails, and fetches the resulting artifact. titles maps node id to display
// title for step labels. The event stream is closed on every exit path.
func (c *Client) Run(ctx context.Context, graph workflow.Graph, titles map[string]string, cb *Callbacks) (*Artifact, error) {
	// the stream must be live before submission so no early event is missed
	wsURL := fmt.Sprintf("ws://%s/ws?clientId=%s", c.address, c.clientID)
	conn, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, &ConnectError{Err: err}
	}
	defer conn.Close()

	// unblock the read loop when the caller gives up
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
		}
	}()

	promptID, err := c.submit(ctx, graph)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"prompt_id": promptID,
		"client_id": c.clientID,
	}).Info("Workflow submitted")

	return c.listen(ctx, conn, promptID, titles, cb)
}

// submit posts the mutated graph plus client identity to the backend
func (c *Client) submit(ctx context.Context, graph workflow.Graph) (string, error) {
	payload := map[string]interface{}{
		"prompt":    graph,
		"client_id": c.clientID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &SubmitError{Err: fmt.Errorf("failed to marshal workflow: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("http://%s/prompt", c.address), bytes.NewReader(body))
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &SubmitError{Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var perr promptError
		if json.Unmarshal(respBody, &perr) == nil && perr.Error.Message != "" {
			return "", &SubmitError{Detail: perr.Error.Message}
		}
		return "", &SubmitError{Detail: fmt.Sprintf("unexpected status code %d", resp.StatusCode)}
	}

	var result promptResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &SubmitError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return result.PromptID, nil
}

// listen consumes events in emission order until a terminal condition
func (c *Client) listen(ctx context.Context, conn *websocket.Conn, promptID string, titles map[string]string, cb *Callbacks) (*Artifact, error) {
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &ConnectionLostError{Err: err}
		}
		// the backend also pushes binary preview frames; only JSON text
		// frames carry events
		if msgType != websocket.TextMessage {
			continue
		}

		var event Event
		if err := json.Unmarshal(msg, &event); err != nil {
			c.logger.WithError(err).Warn("Failed to decode event, skipping")
			continue
		}

		switch data := event.Data.(type) {
		case *StatusData:
			// informational only

		case *ExecutionStartData:
			c.logger.WithField("prompt_id", data.PromptID).Debug("Execution started")

		case *ExecutingData:
			if data.Node == nil {
				// run may be ending, keep listening
				continue
			}
			if cb != nil && cb.OnNodeExecuting != nil {
				title, ok := titles[*data.Node]
				if !ok {
					title = "Node " + *data.Node
				}
				cb.OnNodeExecuting(title)
			}

		case *ProgressData:
			if cb != nil && cb.OnProgress != nil {
				cb.OnProgress(data.Value, data.Max)
			}

		case *ExecutedData:
			if len(data.Output.Images) == 0 {
				// intermediate node completion, not terminal
				continue
			}
			ref := data.Output.Images[0]
			c.logger.WithFields(logrus.Fields{
				"prompt_id": promptID,
				"filename":  ref.Filename,
			}).Info("Generation finished, fetching artifact")
			return c.fetchArtifact(ctx, ref)

		case *ExecutionErrorData:
			return nil, &ExecutionError{
				NodeID:   data.Node,
				NodeType: data.NodeType,
				Detail:   data.ExceptionMessage,
			}

		case *ExecutionCachedData:
			c.logger.WithField("prompt_id", data.PromptID).Debug("Nodes satisfied from cache")

		default:
			// unknown tags are ignored for forward compatibility
		}
	}
}

// fetchArtifact retrieves one generated image by filename reference
func (c *Client) fetchArtifact(ctx context.Context, ref ImageRef) (*Artifact, error) {
	params := url.Values{}
	params.Add("filename", ref.Filename)
	params.Add("type", ref.Type)
	if ref.Subfolder != "" {
		params.Add("subfolder", ref.Subfolder)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("http://%s/view?%s", c.address, params.Encode()), nil)
	if err != nil {
		return nil, &FetchError{Filename: ref.Filename, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Filename: ref.Filename, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Filename: ref.Filename, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Filename: ref.Filename, Err: err}
	}

	return &Artifact{
		Data:      data,
		Filename:  ref.Filename,
		Subfolder: ref.Subfolder,
		Type:      ref.Type,
	}, nil
}

// UploadImage normalizes a source image to PNG and pushes it to the backend's
// input store. It returns the server-assigned filename to reference from the
// load node. Called before any graph is loaded or mutated.
func (c *Client) UploadImage(ctx context.Context, data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", &UploadError{Detail: "attached image could not be decoded", Err: err}
	}

	var encoded bytes.Buffer
	if err := png.Encode(&encoded, img); err != nil {
		return "", &UploadError{Err: err}
	}

	filename := fmt.Sprintf("input_%d_%s.png", time.Now().Unix(), uuid.New().String()[:8])

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	formFile, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	if _, err := io.Copy(formFile, &encoded); err != nil {
		return "", &UploadError{Err: err}
	}
	_ = writer.WriteField("overwrite", "true")
	_ = writer.WriteField("type", "input")
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("http://%s/upload/image", c.address), &body)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &UploadError{Detail: fmt.Sprintf("unexpected status code %d", resp.StatusCode)}
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &UploadError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if result.Name == "" {
		return "", &UploadError{Detail: "backend did not return a stored filename"}
	}

	c.logger.WithField("filename", result.Name).Info("Source image uploaded")
	return result.Name, nil
}
