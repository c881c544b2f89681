package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/recall/internal/assembler"
	"github.com/sandevgo/recall/internal/chat"
	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/internal/core"
	"github.com/sandevgo/recall/internal/generate"
	"github.com/sandevgo/recall/internal/memory"
	"github.com/sandevgo/recall/internal/providers/gemini"
	"github.com/sandevgo/recall/internal/providers/llm"
	"github.com/sandevgo/recall/internal/providers/local"
	"github.com/sandevgo/recall/internal/rag"
	"github.com/sandevgo/recall/internal/storage/sqlite"
	"github.com/sandevgo/recall/internal/summary"
	"github.com/sandevgo/recall/internal/tokens"
	"github.com/sandevgo/recall/internal/window"
	"github.com/sandevgo/recall/pkg/log"
	"github.com/sandevgo/recall/pkg/srv"
)

const defaultSystemPrompt = `You are Recall, a helpful assistant with long-term memory.
Answer directly and concisely. When remembered facts or past conversations
are provided in context, use them naturally without announcing that you did.`

// App bundles everything the chat command needs: the wired session service,
// the background services to run alongside it, and the parsed config.
type App struct {
	Chat     *chat.Service
	Services []srv.Service
	Cfg      *config.AppConfig
}

func NewApp(ctx context.Context) *App {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, appCfg.GetDatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services = append(services, srv.NewCleanup(db.Close))

	sessionsRepo := sqlite.NewSessionsRepo(db)
	messagesRepo := sqlite.NewMessagesRepo(db)
	summariesRepo := sqlite.NewSummariesRepo(db)
	factsRepo := sqlite.NewFactsRepo(db)

	// 3. Providers. The gemini client is shared by chat, embeddings and
	// token counting when selected for those roles.
	var gem *gemini.Client
	if appCfg.LLMProvider == "gemini" || appCfg.EmbeddingProvider == "gemini" {
		gem, err = gemini.NewClient(ctx, config.NewGeminiConfig(ctx))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize gemini client")
		}
	}

	var provider core.ChatProvider
	if appCfg.LLMProvider == "gemini" {
		provider = gem
	} else {
		provider, err = llm.NewProvider(ctx, appCfg.LLMProvider)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize llm provider")
		}
	}

	var embedder core.Embedder
	if appCfg.EmbeddingProvider == "local" {
		localEmb, lerr := local.NewE5Embedder(appCfg.EmbeddingModelPath)
		if lerr != nil {
			logger.Fatal().Err(lerr).Msg("failed to initialize local embedder")
		}
		services = append(services, srv.NewCleanup(localEmb.Close))
		embedder = localEmb
	} else {
		embedder = gem
	}

	// 4. Token accounting. Chat through gemini counts with the gemini
	// tokenizer; everything else falls back to a local tiktoken encoding.
	var counter core.TokenCounter
	if appCfg.LLMProvider == "gemini" {
		counter = gem
	} else {
		counter, err = tokens.NewTiktokenCounter("cl100k_base")
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize token counter")
		}
	}
	hybrid := tokens.NewHybrid(counter, tokens.NewCountCache())
	estimator := tokens.NewEstimator()

	windowBuilder := window.NewBuilder(estimator, window.Options{
		MaxContextTokens: appCfg.MaxContextTokens,
		SystemBuffer:     appCfg.SystemBuffer,
		ResponseBuffer:   appCfg.ResponseBuffer,
		MaxMessages:      appCfg.MaxMessages,
		MinRecent:        appCfg.MinRecent,
	})

	// 5. Summarization
	engine := summary.NewEngine(provider, embedder, summariesRepo, hybrid, summary.Options{
		ThresholdTokens: appCfg.SummaryThresholdTokens,
		KeepFresh:       appCfg.KeepFreshMessages,
	})
	synopsizer := summary.NewSynopsizer(provider, embedder, summariesRepo)

	// 6. Cross-session memory: background extraction worker plus the fact
	// store used at assembly time.
	store := memory.NewStore(factsRepo, embedder)
	extractor := memory.NewExtractor(provider)
	worker := memory.NewWorker(extractor, store)
	services = append(services, worker)

	// 7. Session retrieval over past summaries
	retriever := rag.NewRetriever(summariesRepo, sessionsRepo, embedder)

	// 8. Assembly and generation
	asm := assembler.New(store, retriever, engine, windowBuilder, appCfg.MemoryEnabled)

	system := loadSystemPrompt(appCfg)
	orch := generate.NewOrchestrator(asm, provider, worker, system, float32(appCfg.Temperature))

	chatSvc := chat.NewService(orch, sessionsRepo, messagesRepo, engine, synopsizer, estimator.EstimateText(system))

	return &App{
		Chat:     chatSvc,
		Services: services,
		Cfg:      appCfg,
	}
}

func loadSystemPrompt(cfg *config.AppConfig) string {
	data, err := os.ReadFile(cfg.GetSystemPromptPath())
	if err != nil || len(data) == 0 {
		return defaultSystemPrompt
	}
	return string(data)
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
