// Package app wires the engine together and exposes the operations the
// surrounding application (REST layer, admin tooling) consumes.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"zapdesk/internal/auth"
	"zapdesk/internal/automation"
	"zapdesk/internal/data/store"
	"zapdesk/internal/dispatch"
	"zapdesk/internal/infra/config"
	"zapdesk/internal/infra/logger"
	"zapdesk/internal/ingest"
	"zapdesk/internal/session"
)

// App is the owned engine instance. All commands go through it; there is
// no package-level singleton.
type App struct {
	Config *config.Config
	Log    *logger.Logger
	Store  *store.Store

	Conversations *store.ConversationStore
	Messages      *store.MessageStore
	Automation    *store.AutomationStore

	Manager    *session.Manager
	Dispatcher *dispatch.Dispatcher
	Ingestor   *ingest.Ingestor

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a fully wired App from configuration.
func New(cfg *config.Config) (*App, error) {
	log := logger.New("zapdesk", cfg.LogLevel)
	log.Infof("Initializing zapdesk engine...")

	if err := cfg.EnsureStorePath(); err != nil {
		return nil, fmt.Errorf("failed to ensure store path: %w", err)
	}

	appStore, err := store.New(cfg.StorePath+"/zapdesk.db", log)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	conversations := store.NewConversationStore(appStore)
	messages := store.NewMessageStore(appStore)
	automationStore := store.NewAutomationStore(appStore)

	factory := func(ctx context.Context) (session.Session, error) {
		device, err := appStore.GetDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get device: %w", err)
		}
		return session.NewClient(device, log.Sub("whatsmeow")), nil
	}

	dedup := session.NewDedupGuard(cfg.Session.DedupCapacity)
	threads := ingest.NewThreadResolver(messages, log)

	ctx, cancel := context.WithCancel(context.Background())

	// The manager, dispatcher and ingestor form a small cycle (the
	// ingestor handles the manager's message events, automation replies
	// go back out through the manager's session), so the handler is bound
	// after construction.
	manager := session.NewManager(factory, nil,
		cfg.Session.HealthCheckInterval, cfg.Session.ReconnectDelay, log)

	media := ingest.NewMediaHandler(manager, cfg.MediaPath(), log)
	dispatcher := dispatch.NewDispatcher(manager, messages, log)
	engine := automation.NewEngine(automationStore, messages, dispatcher, log)
	ingestor := ingest.NewIngestor(conversations, messages, media, threads, dedup, engine, log)
	manager.SetHandler(ingestor)

	return &App{
		Config:        cfg,
		Log:           log,
		Store:         appStore,
		Conversations: conversations,
		Messages:      messages,
		Automation:    automationStore,
		Manager:       manager,
		Dispatcher:    dispatcher,
		Ingestor:      ingestor,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Run starts the engine and blocks until shutdown.
func (a *App) Run() error {
	a.Log.Infof("Starting zapdesk engine...")

	// Startup hygiene: conversations without a contact number predate the
	// number-validation filter and would shadow find-or-create lookups.
	if n, err := a.Conversations.PurgeWithoutNumber(); err != nil {
		a.Log.Warnf("Failed to purge conversations without number: %v", err)
	} else if n > 0 {
		a.Log.Infof("Purged %d conversations without contact number", n)
	}

	qrHandler := auth.NewQRHandler(a.Log)
	a.Manager.OnQR(func(code string) {
		qrHandler.Display(code)
		if a.Config.QRImagePath != "" {
			if err := qrHandler.SaveToFile(code, a.Config.QRImagePath); err != nil {
				a.Log.Warnf("Failed to save QR image: %v", err)
			}
		}
	})
	a.Manager.Start(a.ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		a.Log.Infof("Received %v, shutting down...", sig)
		a.cancel()
	}()

	if err := a.Manager.Initialize(a.ctx); err != nil {
		a.Log.Errorf("Initial session start failed: %v", err)
		// The manager stays callable; the operator can retry via the API.
	}

	a.Log.Infof("zapdesk engine is running. Press Ctrl+C to stop.")
	<-a.ctx.Done()
	return a.Shutdown()
}

// GetStatus reports the session lifecycle status.
func (a *App) GetStatus() session.Status {
	return a.Manager.GetStatus()
}

// ListConversations returns all conversations, most recent activity first.
func (a *App) ListConversations() ([]*store.Conversation, error) {
	return a.Conversations.List()
}

// SendMessage sends text to a contact number. A non-zero parentMessageID
// sends it as a reply to that stored message.
func (a *App) SendMessage(number, content string, parentMessageID int64) dispatch.Result {
	if parentMessageID != 0 {
		return a.Dispatcher.SendReply(a.ctx, number, content, parentMessageID)
	}
	return a.Dispatcher.Send(a.ctx, number, content)
}

// SendMedia sends a media file with an optional caption.
func (a *App) SendMedia(number string, file dispatch.File, caption string) dispatch.Result {
	return a.Dispatcher.SendMedia(a.ctx, number, file, caption)
}

// Disconnect tears down the session without stopping the process.
func (a *App) Disconnect() {
	a.Manager.Disconnect()
}

// Shutdown stops everything and closes the store.
func (a *App) Shutdown() error {
	a.cancel()
	a.Manager.Disconnect()
	return a.Store.Close()
}
