package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"manga-bot/backend/internal/adapter"
	"manga-bot/backend/internal/auth"
	"manga-bot/backend/internal/discord"
	"manga-bot/backend/internal/server"
	"manga-bot/backend/internal/speech"
	"manga-bot/backend/internal/voice"
	"manga-bot/backend/pkg/config"
	"manga-bot/backend/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting Manga bot...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Select the storage backend: Firestore when a project is configured,
	// local SQLite files otherwise.
	var (
		store  auth.Store
		backup *auth.Backup
	)
	if cfg.UseFirestore() {
		store, err = auth.NewFirestoreStore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredsFile)
		if err != nil {
			log.Fatal("Failed to connect to Firestore", zap.Error(err))
		}
		log.Info("Using Firestore backend", zap.String("project_id", cfg.FirestoreProjectID))
	} else {
		backup = auth.NewBackup(cfg.DataDir, cfg.BackupDir, cfg.BackupKeep)
		restored, err := backup.RestoreLatestIfEmpty()
		if err != nil {
			log.Warn("Backup restore check failed", zap.Error(err))
		} else if restored {
			log.Info("Restored store from latest backup snapshot")
		}
		store, err = auth.NewSQLiteStore(cfg.DataDir)
		if err != nil {
			log.Fatal("Failed to open SQLite store", zap.Error(err))
		}
		log.Info("Using SQLite backend", zap.String("dir", cfg.DataDir))
	}
	defer store.Close()

	// Authorization state and its coalesced persistence worker
	authMgr := auth.NewManager(cfg.OwnerID)
	if err := authMgr.Load(ctx, store); err != nil {
		log.Fatal("Failed to load authorization state", zap.Error(err))
	}
	queue := auth.NewQueue(store, authMgr)
	authMgr.SetQueue(queue)
	queue.Start()

	// Speech and chat providers
	var openaiClient *openai.Client
	if cfg.OpenAIAPIKey != "" {
		openaiClient = openai.NewClient(cfg.OpenAIAPIKey)
	} else {
		log.Warn("OPENAI_API_KEY not set, transcription and speech are disabled")
	}
	stt := speech.NewTranscriber(openaiClient, cfg.WhisperModel)
	synth := speech.NewSynthesizer(openaiClient, cfg.TTSModel, "")
	responder := voice.NewResponder(synth)
	chain := adapter.NewChain(cfg)
	if !chain.Enabled() {
		log.Warn("No LLM provider configured, chat replies are disabled")
	}

	// Create Discord session
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal("Failed to create Discord session", zap.Error(err))
	}

	voiceMgr := voice.NewManager(dg, voice.ManagerConfig{
		ChannelName: cfg.VoiceChannel,
		Sink: voice.SinkConfig{
			SilenceTimeout:    cfg.SilenceTimeout,
			MinUtteranceBytes: cfg.MinUtteranceBytes,
			MaxBufferBytes:    cfg.MaxBufferBytes,
			RMSThreshold:      cfg.RMSThreshold,
		},
		SegmentTick:       cfg.SegmentTick,
		KeepAliveInterval: cfg.KeepAliveInterval,
		EnforceInterval:   cfg.EnforceInterval,
		RejoinDelay:       cfg.RejoinDelay,
		TimeoutDefaultMin: cfg.TimeoutDefaultMin,
		TimeoutCapMin:     cfg.TimeoutCapMin,
	}, stt, responder, chain)

	handler := discord.NewHandler(authMgr, voiceMgr, chain, backup, cfg.CommandPrefix)

	dg.AddHandler(handler.HandleMessage)
	dg.AddHandler(handler.HandleReactionAdd)
	dg.AddHandler(handler.HandleReactionRemove)
	dg.AddHandler(handler.HandleMemberAdd)
	dg.AddHandler(handler.HandleGuildCreate)
	dg.AddHandler(handler.HandleGuildDelete)
	dg.AddHandler(voiceMgr.HandleVoiceStateUpdate)
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		ids := make([]string, 0, len(r.Guilds))
		for _, g := range r.Guilds {
			ids = append(ids, g.ID)
		}
		authMgr.Bootstrap(ids)
	})

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent

	// Open connection
	if err := dg.Open(); err != nil {
		log.Fatal("Failed to open Discord connection", zap.Error(err))
	}
	defer dg.Close()

	log.Info("Manga bot is running. Press CTRL-C to exit.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(cfg.Port, cfg.IsProduction()).Run(gctx)
	})
	g.Go(func() error {
		voiceMgr.EnforceLoop(gctx)
		return nil
	})
	if backup != nil {
		g.Go(func() error {
			backup.Run(gctx, cfg.BackupInterval)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Background task failed", zap.Error(err))
	}

	log.Info("Shutting down...")
	voiceMgr.Close()
	if !queue.Drain(cfg.SaveDrainTimeout) {
		log.Warn("Save queue drain timed out, recent changes may be lost")
	}
	log.Info("Shutdown complete")
}
