package bot

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/comfyui"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
)

// interactionReporter renders one job's lifecycle into a followup message on
// the originating interaction. Every method is best effort: a deleted status
// message or an expired interaction must never bubble into the dispatch
// loop, so delivery errors are logged and dropped.
type interactionReporter struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
	mention     string
	promptInfo  string
	logger      *logrus.Logger

	mu       sync.Mutex
	message  *discordgo.Message
	step     string
	progress string
}

func newInteractionReporter(session *discordgo.Session, interaction *discordgo.Interaction, mention, promptInfo string) *interactionReporter {
	return &interactionReporter{
		session:     session,
		interaction: interaction,
		mention:     mention,
		promptInfo:  promptInfo,
		logger:      config.NewLogger(),
	}
}

func (r *interactionReporter) Enqueued(position int, queueInfo string) {
	var content string
	if position == 1 {
		content = fmt.Sprintf("⏳ Request received, starting generation...\n\n%s", r.promptInfo)
	} else {
		content = fmt.Sprintf("Request queued at position **%d**\n%s\n\n%s", position, queueInfo, r.promptInfo)
	}

	msg, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
		Content: content,
	})
	if err != nil {
		r.logger.WithError(err).Warn("Failed to send enqueued message")
		return
	}

	r.mu.Lock()
	r.message = msg
	r.mu.Unlock()
}

func (r *interactionReporter) Step(title string) {
	r.mu.Lock()
	r.step = title
	r.progress = ""
	r.mu.Unlock()
}

func (r *interactionReporter) Progress(value, max int) {
	if max <= 0 {
		return
	}
	r.mu.Lock()
	r.progress = fmt.Sprintf("%d%%", 100*value/max)
	r.mu.Unlock()
}

// Heartbeat folds the last seen step and progress into the periodic edit
// rather than editing on every event, which would trip the chat platform's
// rate limits.
func (r *interactionReporter) Heartbeat(glyph string, done, total int) {
	r.mu.Lock()
	step := r.step
	progress := r.progress
	r.mu.Unlock()

	status := heartbeatStatus(glyph, done, total, step, progress)
	r.edit(fmt.Sprintf("%s, please wait...\n\n%s", status, r.promptInfo), nil)
}

// heartbeatStatus renders one heartbeat line. Batch progress only appears
// once at least one item has completed.
func heartbeatStatus(glyph string, done, total int, step, progress string) string {
	status := fmt.Sprintf("%s Generating", glyph)
	if total > 1 && done >= 1 {
		status += fmt.Sprintf(" (%d/%d done)", done, total)
	}
	if step != "" {
		status += fmt.Sprintf("\nCurrent step: %s", step)
		if progress != "" {
			status += fmt.Sprintf(" - %s", progress)
		}
	}
	return status
}

func (r *interactionReporter) Succeeded(artifacts []*comfyui.Artifact) {
	files := make([]*discordgo.File, 0, len(artifacts))
	for i, artifact := range artifacts {
		files = append(files, &discordgo.File{
			Name:        fmt.Sprintf("generated_image_%d.png", i+1),
			ContentType: "image/png",
			Reader:      bytes.NewReader(artifact.Data),
		})
	}

	content := fmt.Sprintf("%s ✅ Generation complete!", r.mention)
	if len(artifacts) > 1 {
		content = fmt.Sprintf("%s ✅ Generation complete! (%d images)", r.mention, len(artifacts))
	}

	r.edit(fmt.Sprintf("%s\n\n%s", content, r.promptInfo), files)
}

func (r *interactionReporter) Failed(item, total int, err error) {
	content := fmt.Sprintf("%s ❌ Generation failed (item %d/%d): %v\n\n%s",
		r.mention, item, total, err, r.promptInfo)
	r.edit(content, nil)
}

// edit updates the status message, creating it first if Enqueued never
// landed one
func (r *interactionReporter) edit(content string, files []*discordgo.File) {
	r.mu.Lock()
	msg := r.message
	r.mu.Unlock()

	if msg == nil {
		created, err := r.session.FollowupMessageCreate(r.interaction, true, &discordgo.WebhookParams{
			Content: content,
			Files:   files,
		})
		if err != nil {
			r.logger.WithError(err).Warn("Failed to create status message")
			return
		}
		r.mu.Lock()
		r.message = created
		r.mu.Unlock()
		return
	}

	edit := &discordgo.WebhookEdit{Content: &content}
	if files != nil {
		edit.Files = files
	}
	if _, err := r.session.FollowupMessageEdit(r.interaction, msg.ID, edit); err != nil {
		// the message may have been deleted; that is the requester's
		// prerogative
		r.logger.WithError(err).Debug("Failed to edit status message")
	}
}
