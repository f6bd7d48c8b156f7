package notify

import (
	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/comfyui"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
)

// Reporter renders one job's lifecycle for its requester. Implementations
// must swallow delivery failures (a deleted status message must never
// propagate into the dispatch loop): every method is best effort.
type Reporter interface {
	// Enqueued is sent once, with the 1-indexed queue position and a
	// queue summary line.
	Enqueued(position int, queueInfo string)
	// Heartbeat ticks periodically while the job runs. done/total carry
	// batch progress; done is 0 until the first item completes.
	Heartbeat(glyph string, done, total int)
	// Step is invoked when the backend moves to a new named node.
	Step(title string)
	// Progress is invoked for intra-step progress, scoped to the current
	// step.
	Progress(value, max int)
	// Succeeded is sent exactly once with all generated artifacts.
	Succeeded(artifacts []*comfyui.Artifact)
	// Failed is sent exactly once with the failing batch item (1-indexed)
	// and the job error.
	Failed(item, total int, err error)
}

// LogReporter reports job lifecycle to the log only; used for headless
// submissions that have no chat channel to render into.
type LogReporter struct {
	logger *logrus.Logger
	user   string
}

// NewLogReporter creates a log-only reporter
func NewLogReporter(user string) *LogReporter {
	return &LogReporter{
		logger: config.NewLogger(),
		user:   user,
	}
}

func (r *LogReporter) Enqueued(position int, queueInfo string) {
	r.logger.WithFields(logrus.Fields{
		"user":     r.user,
		"position": position,
	}).Info("Request enqueued")
}

func (r *LogReporter) Heartbeat(glyph string, done, total int) {}

func (r *LogReporter) Step(title string) {
	r.logger.WithFields(logrus.Fields{
		"user": r.user,
		"step": title,
	}).Debug("Executing node")
}

func (r *LogReporter) Progress(value, max int) {}

func (r *LogReporter) Succeeded(artifacts []*comfyui.Artifact) {
	r.logger.WithFields(logrus.Fields{
		"user":      r.user,
		"artifacts": len(artifacts),
	}).Info("Generation succeeded")
}

func (r *LogReporter) Failed(item, total int, err error) {
	r.logger.WithFields(logrus.Fields{
		"user":  r.user,
		"item":  item,
		"total": total,
	}).WithError(err).Error("Generation failed")
}
