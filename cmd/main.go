package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/api"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/archive"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/bot"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/comfyui"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/config"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/dispatcher"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/interfaces"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/promptstore"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/queue"
	"github.com/th0usandw1nd/ComfyUI-Discord-helper/internal/workflow"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Configure global logger
	config.ConfigureGlobalLogger()

	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	// Validate prompt store type
	factory := promptstore.NewFactory()
	if !factory.ValidateStoreType(cfg.PromptStore) {
		logrus.Fatalf("Unsupported prompt store type: %s, supported types: %s",
			cfg.PromptStore, strings.Join(factory.GetSupportedTypes(), ", "))
	}

	store, err := factory.CreateStore(cfg)
	if err != nil {
		logrus.Fatalf("Failed to create prompt store: %v", err)
	}
	logrus.Infof("Using prompt store type: %s", cfg.PromptStore)

	// Load workflow templates; a broken template fails startup, not the
	// first generation
	templates := make(map[workflow.Mode]*workflow.Template)
	t2i, err := workflow.NewTemplate(cfg.Templates.Txt2Img, workflow.ModeTxt2Img)
	if err != nil {
		logrus.Fatalf("Failed to load txt2img template: %v", err)
	}
	templates[workflow.ModeTxt2Img] = t2i

	i2i, err := workflow.NewTemplate(cfg.Templates.Img2Img, workflow.ModeImg2Img)
	if err != nil {
		logrus.WithError(err).Warn("img2img template unavailable; /genimg will not be registered")
	} else {
		templates[workflow.ModeImg2Img] = i2i
	}
	_, img2imgEnabled := templates[workflow.ModeImg2Img]

	// Initialize components
	qm := queue.NewManager()

	// Create ComfyUI session client
	comfyClient := comfyui.NewClient(cfg.ComfyUI)

	// Optional SFTP archive side channel
	var archiver interfaces.Archiver
	if cfg.Archive.Enabled {
		archiver = archive.NewUploader(cfg.Archive)
		logrus.Infof("Archiving generated images to %s:%s", cfg.Archive.Host, cfg.Archive.RemotePath)
	}

	// Create generation dispatcher
	genDispatcher := dispatcher.NewDispatcher(qm, comfyClient, templates, archiver, cfg.Generation)

	// Start all components
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start generation dispatcher
	go func() {
		if err := genDispatcher.Start(ctx); err != nil {
			logrus.WithError(err).Error("Failed to start generation dispatcher")
		}
	}()
	logrus.Info("Starting generation dispatcher")

	// Start Discord bot
	discordBot, err := bot.New(cfg.Discord, cfg.Generation, qm, store, img2imgEnabled)
	if err != nil {
		logrus.Fatalf("Failed to create bot: %v", err)
	}
	if err := discordBot.Start(); err != nil {
		logrus.Fatalf("Failed to start bot: %v", err)
	}

	// Start HTTP server
	router := gin.Default()
	apiHandler := api.NewHandler(qm, cfg.Generation.MaxBatch)
	apiHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	// Start server
	go func() {
		logrus.Infof("Server starting on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")

	if err := discordBot.Stop(); err != nil {
		logrus.WithError(err).Error("Failed to stop bot")
	}

	// Graceful shutdown
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logrus.Fatal("Server forced to shutdown:", err)
	}

	logrus.Info("Server exited")
}
