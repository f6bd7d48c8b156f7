package bot

import (
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/queue"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/workflow"
)

// commandDefinitions builds the slash command set registered at startup
func (b *Bot) commandDefinitions() []*discordgo.ApplicationCommand {
	minCount := float64(1)
	minDenoise := 0.1

	sizeChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "vertical (832x1216)", Value: string(workflow.SizeVertical)},
		{Name: "square (1024x1024)", Value: string(workflow.SizeSquare)},
		{Name: "horizontal (1216x832)", Value: string(workflow.SizeHorizontal)},
	}

	countOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        "count",
		Description: fmt.Sprintf("Number of images to generate (1-%d)", b.maxBatch),
		MinValue:    &minCount,
		MaxValue:    float64(b.maxBatch),
	}
	sizeOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "size",
		Description: "Image size preset",
		Choices:     sizeChoices,
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "positive",
			Description: "Set your positive prompt",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prompt",
				Description: "Your positive prompt, e.g. masterpiece, 1girl",
				Required:    true,
			}},
		},
		{
			Name:        "positiveadd",
			Description: "Append to your positive prompt (or to the default if unset)",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prompt",
				Description: "Prompt fragment to append, e.g. solo, full body,",
				Required:    true,
			}},
		},
		{
			Name:        "positiveclear",
			Description: "Remove your positive prompt override",
		},
		{
			Name:        "checkpositive",
			Description: "Show your current positive prompt",
		},
		{
			Name:        "negative",
			Description: "Set your negative prompt",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prompt",
				Description: "Your negative prompt, e.g. worst quality, ugly",
				Required:    true,
			}},
		},
		{
			Name:        "negativeadd",
			Description: "Append to your negative prompt (or to the default if unset)",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "prompt",
				Description: "Prompt fragment to append, e.g. text, watermark,",
				Required:    true,
			}},
		},
		{
			Name:        "negativeclear",
			Description: "Remove your negative prompt override",
		},
		{
			Name:        "checknegative",
			Description: "Show your current negative prompt",
		},
		{
			Name:        "gen",
			Description: "Generate images from your prompts",
			Options:     []*discordgo.ApplicationCommandOption{countOption, sizeOption},
		},
	}

	if b.img2img {
		commands = append(commands, &discordgo.ApplicationCommand{
			Name:        "genimg",
			Description: "Generate images from an input image and your prompts",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "image",
					Description: "Source image",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionNumber,
					Name:        "denoise",
					Description: "Denoise strength (0.1-1.0); higher diverges more from the source",
					MinValue:    &minDenoise,
					MaxValue:    1.0,
				},
				countOption,
				sizeOption,
			},
		})
	}

	return append(commands,
		&discordgo.ApplicationCommand{
			Name:        "queue",
			Description: "Show the generation queue status",
		},
		&discordgo.ApplicationCommand{
			Name:        "cancel",
			Description: "Cancel your queued requests",
		},
		&discordgo.ApplicationCommand{
			Name:        "help",
			Description: "Show all available commands",
		},
	)
}

func (b *Bot) commandHandlers() map[string]func(*discordgo.Session, *discordgo.InteractionCreate) {
	handlers := map[string]func(*discordgo.Session, *discordgo.InteractionCreate){
		"positive":      b.handleSetPositive,
		"positiveadd":   b.handleAddPositive,
		"positiveclear": b.handleClearPositive,
		"checkpositive": b.handleCheckPositive,
		"negative":      b.handleSetNegative,
		"negativeadd":   b.handleAddNegative,
		"negativeclear": b.handleClearNegative,
		"checknegative": b.handleCheckNegative,
		"gen":           b.handleGenerate,
		"queue":         b.handleQueue,
		"cancel":        b.handleCancel,
		"help":          b.handleHelp,
	}
	if b.img2img {
		handlers["genimg"] = b.handleGenerateImage
	}
	return handlers
}

// options flattens interaction options into a name-keyed map
func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	opts := i.ApplicationCommandData().Options
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

func (b *Bot) handleSetPositive(s *discordgo.Session, i *discordgo.InteractionCreate) {
	prompt := options(i)["prompt"].StringValue()
	user := interactionUser(i)

	if err := b.store.SetPositive(user.ID, prompt); err != nil {
		b.logger.WithError(err).Error("Failed to save positive prompt")
		b.respondEphemeral(s, i, "❌ Failed to save your prompt, please try again.")
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("**%s**'s positive prompt is now:\n```%s```", displayName(i), prompt))
}

func (b *Bot) handleAddPositive(s *discordgo.Session, i *discordgo.InteractionCreate) {
	addition := options(i)["prompt"].StringValue()
	user := interactionUser(i)

	prompts, _, err := b.store.Get(user.ID)
	if err != nil {
		b.logger.WithError(err).Error("Failed to read prompt store")
	}
	base := prompts.Positive
	if base == "" {
		base = DefaultPositivePrompt
	}

	combined := appendPrompt(base, addition)
	if err := b.store.SetPositive(user.ID, combined); err != nil {
		b.logger.WithError(err).Error("Failed to save positive prompt")
		b.respondEphemeral(s, i, "❌ Failed to save your prompt, please try again.")
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("**%s**'s positive prompt is now:\n```%s```", displayName(i), combined))
}

func (b *Bot) handleClearPositive(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if err := b.store.ClearPositive(user.ID); err != nil {
		b.logger.WithError(err).Error("Failed to clear positive prompt")
		b.respondEphemeral(s, i, "❌ Failed to clear your prompt, please try again.")
		return
	}
	b.respondEphemeral(s, i, "✅ Positive prompt override removed; the default applies again.")
}

func (b *Bot) handleCheckPositive(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	prompts, ok, err := b.store.Get(user.ID)
	if err != nil {
		b.logger.WithError(err).Error("Failed to read prompt store")
	}
	if ok && prompts.Positive != "" {
		b.respondEphemeral(s, i, fmt.Sprintf("**%s**'s positive prompt:\n```%s```", displayName(i), prompts.Positive))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("**%s** has no positive prompt set; the **default** applies:\n```%s```", displayName(i), DefaultPositivePrompt))
}

func (b *Bot) handleSetNegative(s *discordgo.Session, i *discordgo.InteractionCreate) {
	prompt := options(i)["prompt"].StringValue()
	user := interactionUser(i)

	if err := b.store.SetNegative(user.ID, prompt); err != nil {
		b.logger.WithError(err).Error("Failed to save negative prompt")
		b.respondEphemeral(s, i, "❌ Failed to save your prompt, please try again.")
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("**%s**'s negative prompt is now:\n```%s```", displayName(i), prompt))
}

func (b *Bot) handleAddNegative(s *discordgo.Session, i *discordgo.InteractionCreate) {
	addition := options(i)["prompt"].StringValue()
	user := interactionUser(i)

	prompts, _, err := b.store.Get(user.ID)
	if err != nil {
		b.logger.WithError(err).Error("Failed to read prompt store")
	}
	base := prompts.Negative
	if base == "" {
		base = DefaultNegativePrompt
	}

	combined := appendPrompt(base, addition)
	if err := b.store.SetNegative(user.ID, combined); err != nil {
		b.logger.WithError(err).Error("Failed to save negative prompt")
		b.respondEphemeral(s, i, "❌ Failed to save your prompt, please try again.")
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("**%s**'s negative prompt is now:\n```%s```", displayName(i), combined))
}

func (b *Bot) handleClearNegative(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	if err := b.store.ClearNegative(user.ID); err != nil {
		b.logger.WithError(err).Error("Failed to clear negative prompt")
		b.respondEphemeral(s, i, "❌ Failed to clear your prompt, please try again.")
		return
	}
	b.respondEphemeral(s, i, "✅ Negative prompt override removed; the default applies again.")
}

func (b *Bot) handleCheckNegative(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	prompts, ok, err := b.store.Get(user.ID)
	if err != nil {
		b.logger.WithError(err).Error("Failed to read prompt store")
	}
	if ok && prompts.Negative != "" {
		b.respondEphemeral(s, i, fmt.Sprintf("**%s**'s negative prompt:\n```%s```", displayName(i), prompts.Negative))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("**%s** has no negative prompt set; the **default** applies:\n```%s```", displayName(i), DefaultNegativePrompt))
}

// buildRequest assembles the common part of a generation request and the
// prompt info block shown in status messages
func (b *Bot) buildRequest(s *discordgo.Session, i *discordgo.InteractionCreate) (*queue.Request, string) {
	user := interactionUser(i)
	opts := options(i)

	req := queue.NewRequest(user.ID, displayName(i))
	if opt, ok := opts["count"]; ok {
		count := int(opt.IntValue())
		if count < 1 {
			count = 1
		}
		if count > b.maxBatch {
			count = b.maxBatch
		}
		req.BatchCount = count
	}
	if opt, ok := opts["size"]; ok {
		req.Size = workflow.Size(opt.StringValue())
	}

	prompts, _, err := b.store.Get(user.ID)
	if err != nil {
		b.logger.WithError(err).Error("Failed to read prompt store")
	}
	posLabel, negLabel := "", " (default)"
	req.Positive, req.Negative = prompts.Positive, prompts.Negative
	if req.Positive == "" {
		req.Positive = DefaultPositivePrompt
		posLabel = " (default)"
	}
	if prompts.Negative != "" {
		negLabel = ""
	} else {
		req.Negative = DefaultNegativePrompt
	}

	promptInfo := fmt.Sprintf("**Size**: %s\n**Positive%s**:\n```%s```\n**Negative%s**:\n```%s```",
		req.Size, posLabel, req.Positive, negLabel, req.Negative)

	return req, promptInfo
}

// enqueue defers the interaction, hooks up the reporter and lands the
// request in the queue
func (b *Bot) enqueue(s *discordgo.Session, i *discordgo.InteractionCreate, req *queue.Request, promptInfo string) {
	user := interactionUser(i)

	reporter := newInteractionReporter(s, i.Interaction, user.Mention(), promptInfo)
	req.Reporter = reporter

	position := b.queueManager.Enqueue(req)
	reporter.Enqueued(position, b.queueManager.Status().Summary())

	b.logger.WithFields(logrus.Fields{
		"user":     req.UserName,
		"mode":     req.Mode,
		"batch":    req.BatchCount,
		"size":     req.Size,
		"position": position,
	}).Info("Generation request accepted")
}

func (b *Bot) handleGenerate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.logger.WithError(err).Warn("Failed to defer interaction")
		return
	}

	req, promptInfo := b.buildRequest(s, i)
	b.enqueue(s, i, req, promptInfo)
}

func (b *Bot) handleGenerateImage(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.logger.WithError(err).Warn("Failed to defer interaction")
		return
	}

	req, promptInfo := b.buildRequest(s, i)
	req.Mode = workflow.ModeImg2Img
	req.Denoise = 0.6
	opts := options(i)
	if opt, ok := opts["denoise"]; ok {
		req.Denoise = opt.FloatValue()
	}

	attachmentID, _ := opts["image"].Value.(string)
	attachment, ok := i.ApplicationCommandData().Resolved.Attachments[attachmentID]
	if !ok {
		b.followupError(s, i, "❌ The attached image could not be resolved.")
		return
	}

	data, err := downloadAttachment(attachment.URL)
	if err != nil {
		b.logger.WithError(err).Warn("Failed to download attachment")
		b.followupError(s, i, "❌ The attached image could not be downloaded.")
		return
	}
	req.InputImage = data

	b.enqueue(s, i, req, promptInfo)
}

func (b *Bot) followupError(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: content}); err != nil {
		b.logger.WithError(err).Warn("Failed to send error followup")
	}
}

func downloadAttachment(url string) ([]byte, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) handleQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	position := b.queueManager.PositionOf(user.ID)
	info := b.queueManager.Status().Summary()

	if position > 0 {
		b.respondEphemeral(s, i, fmt.Sprintf("**Queue status**\nYour position: **%d**\n%s", position, info))
		return
	}
	b.respondEphemeral(s, i, fmt.Sprintf("**Queue status**\n%s\n\nYou have no queued requests.", info))
}

func (b *Bot) handleCancel(s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := interactionUser(i)
	removed, inProgress := b.queueManager.Cancel(user.ID)

	switch {
	case removed > 0:
		b.respondEphemeral(s, i, fmt.Sprintf("✅ Cancelled **%d** of your requests", removed))
	case inProgress:
		b.respondEphemeral(s, i, "⚠️ Your request is already being processed and cannot be cancelled")
	default:
		b.respondEphemeral(s, i, "ℹ️ You have no queued requests")
	}
}

func (b *Bot) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) {
	generation := "`/gen [count] [size]` — generate from your prompts (default 1, vertical)\n"
	if b.img2img {
		generation += "`/genimg image [denoise] [count] [size]` — generate from a source image\n"
	}
	generation += "Sizes: `square` 1024x1024, `vertical` 832x1216 (default), `horizontal` 1216x832"

	embed := &discordgo.MessageEmbed{
		Title:       "Image generation helper",
		Description: "All available commands:",
		Color:       0x3498db,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Image generation",
				Value: generation,
			},
			{
				Name: "Prompt settings",
				Value: "`/positive <prompt>` / `/negative <prompt>` — set your prompts\n" +
					"`/positiveadd <prompt>` / `/negativeadd <prompt>` — append fragments\n" +
					"`/positiveclear` / `/negativeclear` — back to defaults\n" +
					"`/checkpositive` / `/checknegative` — show current prompts",
			},
			{
				Name:  "Queue",
				Value: "`/queue` — show queue status and your position\n`/cancel` — cancel your queued requests",
			},
			{
				Name: "Notes",
				Value: fmt.Sprintf("• Prompt settings are per user\n• Unset prompts fall back to the defaults\n"+
					"• Batch limit is **%d** images\n• Requests are processed strictly in order", b.maxBatch),
			},
		},
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
	if err != nil {
		b.logger.WithError(err).Warn("Failed to respond to help command")
	}
}
