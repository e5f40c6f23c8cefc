package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiotutor/audiotutor/internal/analyzer"
	"github.com/audiotutor/audiotutor/internal/audio"
	"github.com/audiotutor/audiotutor/internal/config"
	"github.com/audiotutor/audiotutor/internal/httpapi"
	"github.com/audiotutor/audiotutor/internal/logging"
	"github.com/audiotutor/audiotutor/internal/memory"
	"github.com/audiotutor/audiotutor/internal/observability"
	"github.com/audiotutor/audiotutor/internal/session"
	"github.com/audiotutor/audiotutor/internal/store"
	"github.com/audiotutor/audiotutor/internal/tutor"
	"github.com/audiotutor/audiotutor/internal/vectorstore"
	"github.com/audiotutor/audiotutor/internal/voice"
)

func main() {
	var (
		userID   = flag.String("user", "", "run one tutoring session for this user, reading PCM audio from stdin")
		language = flag.String("language", "", "session language (defaults to APP_DEFAULT_LANGUAGE)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogConsole)
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	memoryStore, err := memory.NewStore(ctx, cfg.RedisURL, cfg.MemoryTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("dialogue memory init failed")
	}
	defer memoryStore.Close()
	if cfg.RedisURL == "" {
		log.Warn().Msg("REDIS_URL not set, dialogue memory is process local")
	}

	var records store.Store
	if cfg.DatabaseURL != "" {
		records, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("conversation store init failed")
		}
	} else {
		log.Warn().Msg("DATABASE_URL not set, conversation records are process local")
		records = store.NewMemoryStore()
	}
	defer records.Close()

	var vectors vectorstore.Store
	if cfg.QdrantURL != "" {
		vectors, err = vectorstore.NewQdrantStore(ctx, vectorstore.QdrantConfig{
			URL:        cfg.QdrantURL,
			Collection: cfg.QdrantCollection,
			APIKey:     cfg.QdrantAPIKey,
			Dim:        uint64(cfg.EmbeddingDim),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("vector store init failed")
		}
	} else {
		log.Warn().Msg("QDRANT_URL not set, vector index is process local")
		vectors = vectorstore.NewMemoryStore()
	}
	defer vectors.Close()

	gemini, err := tutor.NewGeminiClient(ctx, tutor.GeminiConfig{
		APIKey:         cfg.GeminiAPIKey,
		Model:          cfg.GeminiModel,
		AnalysisModel:  cfg.GeminiAnalysisModel,
		EmbeddingModel: cfg.GeminiEmbeddingModel,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("gemini client init failed")
	}

	var (
		sttProvider voice.STTProvider
		ttsProvider voice.TTSProvider
	)
	if cfg.ElevenLabsAPIKey != "" {
		p := voice.NewElevenLabsProvider(voice.ElevenLabsConfig{
			APIKey:     cfg.ElevenLabsAPIKey,
			WSBaseURL:  cfg.ElevenLabsWSBaseURL,
			STTModelID: cfg.ElevenLabsSTTModel,
			SampleRate: cfg.SampleRate,
		})
		sttProvider, ttsProvider = p, p
		log.Info().Msg("voice provider: elevenlabs realtime")
	} else {
		p := voice.NewMockProvider()
		sttProvider, ttsProvider = p, p
		log.Warn().Msg("voice provider: mock (ELEVENLABS_API_KEY not set)")
	}

	var sink audio.Sink = audio.DiscardSink{}
	if cfg.AudioSpoolDir != "" {
		sink, err = audio.NewSpoolSink(cfg.AudioSpoolDir, cfg.SampleRate)
		if err != nil {
			log.Fatal().Err(err).Msg("audio spool init failed")
		}
	}

	sessions := session.NewManager()
	orchestrator := tutor.NewOrchestrator(gemini, memoryStore, cfg.ModelTimeout, cfg.ModelRetryMax, metrics, log)
	indexer := vectorstore.NewIndexer(gemini, vectors)
	reports := analyzer.New(gemini, indexer, cfg.RetrievalK, log)
	speaker := voice.NewSpeaker(voice.NewSynthesizer(ttsProvider, cfg.ElevenLabsTTSModel), sink)

	controller := session.NewController(session.Config{
		Manager:  sessions,
		Tutor:    orchestrator,
		Voice:    speaker,
		Records:  records,
		Indexer:  indexer,
		Analyzer: reports,
		NewListener: func(language string) session.Listener {
			return voice.NewTranscriber(sttProvider, language, cfg.SilenceTimeout)
		},
		StopKeyword:  cfg.StopKeyword,
		RepromptMax:  cfg.RepromptMax,
		ReconnectMax: cfg.STTReconnectMax,
		Metrics:      metrics,
		Log:          log,
	})

	if *userID != "" {
		lang := *language
		if lang == "" {
			lang = cfg.DefaultLanguage
		}
		runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		frames := audio.StreamPCM(runCtx, os.Stdin, cfg.FrameBytes)
		recordID, err := controller.Run(runCtx, *userID, lang, frames)
		if err != nil {
			log.Fatal().Err(err).Msg("session failed")
		}
		log.Info().Int64("record_id", recordID).Msg("session saved")
		return
	}

	api := httpapi.New(sessions, records, metrics, log)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info().Str("addr", cfg.BindAddr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		_ = httpServer.Close()
	}
	log.Info().Msg("shutdown complete")
}
