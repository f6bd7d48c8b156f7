package bot

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/interfaces"
)

// Bot is the Discord command surface: it registers the slash commands,
// translates interactions into queue requests and prompt store updates, and
// owns nothing else — all generation work happens in the dispatcher.
type Bot struct {
	session      *discordgo.Session
	queueManager interfaces.QueueManager
	store        interfaces.PromptStore
	cfg          config.DiscordConfig
	maxBatch     int
	img2img      bool // register /genimg only when a template backs it
	logger       *logrus.Logger
	handlers     map[string]func(*discordgo.Session, *discordgo.InteractionCreate)
}

// New creates the bot without connecting. img2img controls whether /genimg is
// offered at all; without a template behind it the command would only ever
// fail.
func New(cfg config.DiscordConfig, gen config.GenerationConfig, queueManager interfaces.QueueManager, store interfaces.PromptStore, img2img bool) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	b := &Bot{
		session:      session,
		queueManager: queueManager,
		store:        store,
		cfg:          cfg,
		maxBatch:     gen.MaxBatch,
		img2img:      img2img,
		logger:       config.NewLogger(),
	}
	b.handlers = b.commandHandlers()

	session.AddHandler(b.onInteraction)
	session.Identify.Intents = discordgo.IntentsGuildMessages

	return b, nil
}

// Start connects to the gateway and registers the slash commands
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	commands := b.commandDefinitions()
	if _, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.GuildID, commands); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"user":     b.session.State.User.Username,
		"commands": len(commands),
	}).Info("Bot connected")

	return nil
}

// Stop disconnects from the gateway
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	name := i.ApplicationCommandData().Name
	handler, ok := b.handlers[name]
	if !ok {
		b.logger.WithField("command", name).Warn("Unknown command")
		return
	}
	handler(s, i)
}

// interactionUser resolves the invoking user for guild and DM interactions
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil {
		return i.Member.User
	}
	return i.User
}

// displayName resolves the name shown in status messages
func displayName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.Nick != "" {
		return i.Member.Nick
	}
	user := interactionUser(i)
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

// respondEphemeral sends a simple ephemeral reply
func (b *Bot) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		b.logger.WithError(err).Warn("Failed to respond to interaction")
	}
}
