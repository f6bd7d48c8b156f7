package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/comfyui"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/queue"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/workflow"
)

const testFixture = `{
  "1": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Positive Prompt Loader"}},
  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Negative Prompt Loader"}},
  "3": {"class_type": "EmptyLatentImage", "inputs": {"width": 512, "height": 512}, "_meta": {"title": "Empty latent"}},
  "4": {"class_type": "KSampler", "inputs": {"seed": 0}, "_meta": {"title": "KSampler"}}
}`

const testImg2ImgFixture = `{
  "1": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Positive Prompt Loader"}},
  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": ""}, "_meta": {"title": "Negative Prompt Loader"}},
  "3": {"class_type": "LoadImage", "inputs": {"image": ""}, "_meta": {"title": "Load image"}},
  "4": {"class_type": "LatentUpscale", "inputs": {"width": 512, "height": 512}, "_meta": {"title": "Latent resize"}}
}`

// fakeSession scripts session outcomes per call
type fakeSession struct {
	mu         sync.Mutex
	runs       int
	failAt     int // 1-indexed run that returns runErr, 0 = never
	runErr     error
	uploadErr  error
	uploads    int
	graphsSeen []workflow.Graph
	panicAt    int // 1-indexed run that panics, 0 = never
}

func (f *fakeSession) Run(ctx context.Context, graph workflow.Graph, titles map[string]string, cb *comfyui.Callbacks) (*comfyui.Artifact, error) {
	f.mu.Lock()
	f.runs++
	n := f.runs
	f.graphsSeen = append(f.graphsSeen, graph)
	f.mu.Unlock()

	if f.panicAt != 0 && n == f.panicAt {
		panic("session blew up")
	}
	if f.failAt != 0 && n == f.failAt {
		return nil, f.runErr
	}
	return &comfyui.Artifact{
		Filename: fmt.Sprintf("out_%d.png", n),
		Data:     []byte{0x89, 0x50, byte(n)},
	}, nil
}

func (f *fakeSession) UploadImage(ctx context.Context, data []byte) (string, error) {
	f.mu.Lock()
	f.uploads++
	f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return "input_test.png", nil
}

func (f *fakeSession) ClientID() string { return "test-client" }

func (f *fakeSession) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

// recordingReporter captures terminal calls for assertions
type recordingReporter struct {
	mu         sync.Mutex
	heartbeats []string
	succeeded  [][]*comfyui.Artifact
	failed     []failure
}

type failure struct {
	item, total int
	err         error
}

func (r *recordingReporter) Enqueued(position int, queueInfo string) {}

func (r *recordingReporter) Heartbeat(glyph string, done, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heartbeats = append(r.heartbeats, glyph)
}

func (r *recordingReporter) Step(title string)       {}
func (r *recordingReporter) Progress(value, max int) {}

func (r *recordingReporter) Succeeded(artifacts []*comfyui.Artifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, artifacts)
}

func (r *recordingReporter) Failed(item, total int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, failure{item: item, total: total, err: err})
}

func (r *recordingReporter) snapshot() ([][]*comfyui.Artifact, []failure, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.succeeded, r.failed, len(r.heartbeats)
}

func testTemplates(t *testing.T) map[workflow.Mode]*workflow.Template {
	t.Helper()
	dir := t.TempDir()

	t2iPath := filepath.Join(dir, "t2i.json")
	require.NoError(t, os.WriteFile(t2iPath, []byte(testFixture), 0o644))
	t2i, err := workflow.NewTemplate(t2iPath, workflow.ModeTxt2Img)
	require.NoError(t, err)

	i2iPath := filepath.Join(dir, "i2i.json")
	require.NoError(t, os.WriteFile(i2iPath, []byte(testImg2ImgFixture), 0o644))
	i2i, err := workflow.NewTemplate(i2iPath, workflow.ModeImg2Img)
	require.NoError(t, err)

	return map[workflow.Mode]*workflow.Template{
		workflow.ModeTxt2Img: t2i,
		workflow.ModeImg2Img: i2i,
	}
}

func testConfig() config.GenerationConfig {
	return config.GenerationConfig{
		MaxBatch:          4,
		PollInterval:      5 * time.Millisecond,
		HeartbeatInterval: 5 * time.Millisecond,
	}
}

func newTestDispatcher(t *testing.T, session *fakeSession) (*Dispatcher, *queue.Manager) {
	t.Helper()
	qm := queue.NewManager()
	d := NewDispatcher(qm, session, testTemplates(t), nil, testConfig())
	return d, qm
}

func runUntilIdle(t *testing.T, d *Dispatcher, qm *queue.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go d.Start(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if qm.Depth() == 0 && !qm.Status().Processing {
			// one extra poll interval so a just-claimed job can land
			time.Sleep(20 * time.Millisecond)
			if qm.Depth() == 0 && !qm.Status().Processing {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatal("queue did not drain in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestDispatchBatchSuccess(t *testing.T) {
	session := &fakeSession{}
	d, qm := newTestDispatcher(t, session)

	reporter := &recordingReporter{}
	req := queue.NewRequest("u1", "alice")
	req.BatchCount = 3
	req.Reporter = reporter
	qm.Enqueue(req)

	runUntilIdle(t, d, qm)

	succeeded, failed, _ := reporter.snapshot()
	require.Len(t, succeeded, 1)
	assert.Len(t, succeeded[0], 3)
	assert.Empty(t, failed)
	assert.Equal(t, 3, session.runCount())
}

func TestDispatchFreshGraphPerItem(t *testing.T) {
	session := &fakeSession{}
	d, qm := newTestDispatcher(t, session)

	req := queue.NewRequest("u1", "alice")
	req.BatchCount = 2
	req.Reporter = &recordingReporter{}
	qm.Enqueue(req)

	runUntilIdle(t, d, qm)

	require.Len(t, session.graphsSeen, 2)
	// distinct graph instances, not one shared mutated copy
	assert.NotSame(t, session.graphsSeen[0]["4"], session.graphsSeen[1]["4"])
}

func TestDispatchFailureDiscardsEarlierArtifacts(t *testing.T) {
	session := &fakeSession{failAt: 3, runErr: errors.New("connection reset")}
	d, qm := newTestDispatcher(t, session)

	reporter := &recordingReporter{}
	req := queue.NewRequest("u1", "alice")
	req.BatchCount = 3
	req.Reporter = reporter
	qm.Enqueue(req)

	runUntilIdle(t, d, qm)

	succeeded, failed, _ := reporter.snapshot()
	assert.Empty(t, succeeded, "a failing batch delivers nothing")
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].item)
	assert.Equal(t, 3, failed[0].total)
	assert.ErrorContains(t, failed[0].err, "connection reset")
}

func TestDispatchUploadFailsBeforeGraphWork(t *testing.T) {
	session := &fakeSession{uploadErr: errors.New("upload rejected")}
	d, qm := newTestDispatcher(t, session)

	reporter := &recordingReporter{}
	req := queue.NewRequest("u1", "alice")
	req.Mode = workflow.ModeImg2Img
	req.InputImage = []byte{1, 2, 3}
	req.Denoise = 0.6
	req.Reporter = reporter
	qm.Enqueue(req)

	runUntilIdle(t, d, qm)

	_, failed, _ := reporter.snapshot()
	require.Len(t, failed, 1)
	assert.Equal(t, 0, session.runCount(), "no session runs after a failed upload")
}

func TestDispatchMissingTemplate(t *testing.T) {
	session := &fakeSession{}
	qm := queue.NewManager()
	d := NewDispatcher(qm, session, map[workflow.Mode]*workflow.Template{}, nil, testConfig())

	reporter := &recordingReporter{}
	req := queue.NewRequest("u1", "alice")
	req.Reporter = reporter
	qm.Enqueue(req)

	runUntilIdle(t, d, qm)

	_, failed, _ := reporter.snapshot()
	require.Len(t, failed, 1)
	assert.ErrorContains(t, failed[0].err, "no workflow template")
}

func TestDispatchSurvivesPanickingJob(t *testing.T) {
	session := &fakeSession{panicAt: 1}
	d, qm := newTestDispatcher(t, session)

	bad := queue.NewRequest("u1", "alice")
	badReporter := &recordingReporter{}
	bad.Reporter = badReporter
	qm.Enqueue(bad)

	good := queue.NewRequest("u2", "bob")
	goodReporter := &recordingReporter{}
	good.Reporter = goodReporter
	qm.Enqueue(good)

	runUntilIdle(t, d, qm)

	_, badFailed, _ := badReporter.snapshot()
	require.Len(t, badFailed, 1, "panicking job reports failure")

	goodSucceeded, _, _ := goodReporter.snapshot()
	require.Len(t, goodSucceeded, 1, "loop keeps running after a panic")
}

func TestHeartbeatStopsBeforeTerminalMessage(t *testing.T) {
	session := &fakeSession{}
	d, qm := newTestDispatcher(t, session)

	reporter := &recordingReporter{}
	req := queue.NewRequest("u1", "alice")
	req.Reporter = reporter
	qm.Enqueue(req)

	runUntilIdle(t, d, qm)

	succeeded, _, _ := reporter.snapshot()
	require.Len(t, succeeded, 1)

	// any heartbeat landing after Succeeded would grow the slice here
	_, _, before := reporter.snapshot()
	time.Sleep(50 * time.Millisecond)
	_, _, after := reporter.snapshot()
	assert.Equal(t, before, after, "no heartbeat after the terminal message")
}

func TestHeartbeatGlyphsAlternate(t *testing.T) {
	session := &fakeSession{}
	qm := queue.NewManager()
	cfg := testConfig()
	d := NewDispatcher(qm, session, testTemplates(t), nil, cfg)

	reporter := &recordingReporter{}
	hb := d.startHeartbeat(reporter, 1)
	time.Sleep(40 * time.Millisecond)
	hb.stop()
	// stop is idempotent
	hb.stop()

	_, _, ticks := reporter.snapshot()
	require.GreaterOrEqual(t, ticks, 2)

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	assert.NotEqual(t, reporter.heartbeats[0], reporter.heartbeats[1])
}
