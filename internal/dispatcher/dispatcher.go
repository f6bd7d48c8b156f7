package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/comfyui"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/interfaces"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/notify"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/queue"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/workflow"
)

// heartbeat glyphs alternate on each tick
var heartbeatGlyphs = []string{"⏳", "⌛"}

// Dispatcher is the single consumer of the generation queue. It enforces
// at-most-one job in flight: the backend serializes heavy compute anyway, so
// client-side serialization avoids wasted concurrent submissions and keeps
// "what is running right now" a single well-defined answer.
type Dispatcher struct {
	queueManager interfaces.QueueManager
	session      interfaces.SessionClient
	templates    map[workflow.Mode]*workflow.Template
	archiver     interfaces.Archiver // may be nil
	logger       *logrus.Logger
	cfg          config.GenerationConfig
}

// NewDispatcher creates the dispatcher. archiver may be nil when the side
// channel is disabled.
func NewDispatcher(
	queueManager interfaces.QueueManager,
	session interfaces.SessionClient,
	templates map[workflow.Mode]*workflow.Template,
	archiver interfaces.Archiver,
	cfg config.GenerationConfig,
) *Dispatcher {
	return &Dispatcher{
		queueManager: queueManager,
		session:      session,
		templates:    templates,
		archiver:     archiver,
		logger:       config.NewLogger(),
		cfg:          cfg,
	}
}

// Start runs the dispatch loop until ctx is cancelled. The loop polls for
// work while idle; a failing job is reported to its requester and the loop
// proceeds to the next entry. The loop itself never terminates from a job
// failure.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("Starting generation dispatcher")

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Generation dispatcher stopped")
			return nil
		case <-ticker.C:
			d.dispatchNext(ctx)
		}
	}
}

// dispatchNext claims at most one request and runs it to a terminal state
func (d *Dispatcher) dispatchNext(ctx context.Context) {
	req := d.queueManager.ClaimNext()
	if req == nil {
		return
	}
	defer d.queueManager.Finish()

	reporter := req.Reporter
	if reporter == nil {
		reporter = notify.NewLogReporter(req.UserName)
	}

	// the per-job boundary: a panicking job must not take the loop down
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithFields(logrus.Fields{
				"request_id": req.ID,
				"user":       req.UserName,
				"panic":      r,
			}).Error("Job panicked, recovering dispatch loop")
			reporter.Failed(1, req.BatchCount, fmt.Errorf("internal error: %v", r))
		}
	}()

	d.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user":       req.UserName,
		"batch":      req.BatchCount,
		"mode":       req.Mode,
		"size":       req.Size,
	}).Info("Processing request")

	d.execute(ctx, req, reporter)
}

// execute runs the full request: optional upload, then batch_count sequential
// generation sessions. A failure at item i aborts the remaining items and
// discards earlier artifacts.
func (d *Dispatcher) execute(ctx context.Context, req *queue.Request, reporter notify.Reporter) {
	tmpl, ok := d.templates[req.Mode]
	if !ok {
		reporter.Failed(1, req.BatchCount, fmt.Errorf("no workflow template for mode %s", req.Mode))
		return
	}

	hb := d.startHeartbeat(reporter, req.BatchCount)
	// the heartbeat is joined before any terminal message on every exit
	// path, including panics
	defer hb.stop()

	fail := func(item int, err error) {
		hb.stop()
		d.logger.WithFields(logrus.Fields{
			"request_id": req.ID,
			"user":       req.UserName,
			"item":       item,
			"total":      req.BatchCount,
		}).WithError(err).Error("Generation failed")
		reporter.Failed(item, req.BatchCount, err)
	}

	// img2img uploads before any graph is loaded or mutated: no point
	// building a graph that references a file that never made it up
	var uploaded string
	if req.Mode == workflow.ModeImg2Img {
		name, err := d.session.UploadImage(ctx, req.InputImage)
		if err != nil {
			fail(1, err)
			return
		}
		uploaded = name
	}

	callbacks := &comfyui.Callbacks{
		OnNodeExecuting: reporter.Step,
		OnProgress:      reporter.Progress,
	}

	artifacts := make([]*comfyui.Artifact, 0, req.BatchCount)
	for i := 1; i <= req.BatchCount; i++ {
		graph, err := tmpl.Load()
		if err != nil {
			fail(i, err)
			return
		}

		// a fresh seed is drawn per item; all seed inputs of one item
		// share it
		if _, err := tmpl.Apply(graph, workflow.Params{
			Positive:   req.Positive,
			Negative:   req.Negative,
			Size:       req.Size,
			Mode:       req.Mode,
			Denoise:    req.Denoise,
			InputImage: uploaded,
		}); err != nil {
			fail(i, err)
			return
		}

		artifact, err := d.session.Run(ctx, graph, workflow.TitleIndex(graph), callbacks)
		if err != nil {
			fail(i, err)
			return
		}

		artifacts = append(artifacts, artifact)
		hb.completed(i)

		d.archive(req, artifact, i)
	}

	hb.stop()
	reporter.Succeeded(artifacts)

	d.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"user":       req.UserName,
		"artifacts":  len(artifacts),
	}).Info("Request completed")
}

// archive pushes one artifact through the side channel; failures are logged
// and never fail the job
func (d *Dispatcher) archive(req *queue.Request, artifact *comfyui.Artifact, item int) {
	if d.archiver == nil {
		return
	}

	filename := fmt.Sprintf("gen_%s_%s_%d.png", req.UserID, time.Now().Format("20060102_150405"), item)
	remote, err := d.archiver.Store(filename, artifact.Data)
	if err != nil {
		d.logger.WithError(err).WithField("filename", filename).Warn("Failed to archive artifact")
		return
	}
	d.logger.WithField("remote", remote).Debug("Artifact archived")
}
