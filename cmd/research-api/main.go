// Package main 股票研究 API 服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fin-research-api/internal/application/analyst"
	"fin-research-api/internal/application/collector"
	"fin-research-api/internal/application/intent"
	"fin-research-api/internal/application/rag"
	"fin-research-api/internal/application/reporter"
	"fin-research-api/internal/config"
	"fin-research-api/internal/domain/entity"
	"fin-research-api/internal/infrastructure/embedding"
	"fin-research-api/internal/infrastructure/filings"
	"fin-research-api/internal/infrastructure/llm"
	"fin-research-api/internal/infrastructure/marketdata"
	"fin-research-api/internal/infrastructure/newsfeed"
	"fin-research-api/internal/infrastructure/persistence/milvus"
	"fin-research-api/internal/infrastructure/persistence/postgres"
	"fin-research-api/internal/infrastructure/persistence/redis"
	"fin-research-api/internal/infrastructure/rerank"
	"fin-research-api/internal/interfaces/http/handler"
	"fin-research-api/internal/interfaces/http/router"
	einoobs "fin-research-api/internal/observability/eino"
	"fin-research-api/internal/workflow"
	"fin-research-api/pkg/logger"
	"fin-research-api/pkg/tracer"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting research-api",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 注册 Eino 全局观测回调
	einoobs.Init()

	// 持久化层
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to connect postgres", err)
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		logger.Fatal(ctx, "failed to connect redis", err)
	}
	defer redisClient.Close()

	if err := pgClient.DB().AutoMigrate(&entity.DocumentMetadata{}, &entity.QueryHistory{}); err != nil {
		logger.Fatal(ctx, "failed to migrate schema", err)
	}

	documentRepo := postgres.NewDocumentRepository(pgClient)
	historyRepo := postgres.NewQueryHistoryRepository(pgClient)
	cache := redis.NewCache(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient)

	// 向量检索栈：Milvus 不可用时检索能力整体降级，不阻塞启动
	var (
		milvusClient *milvus.Client
		retriever    *rag.Engine
		indexer      *rag.Indexer
	)
	milvusClient, err = milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		log.Warn("milvus unavailable, retrieval disabled", "error", err)
		milvusClient = nil
	}

	if milvusClient != nil {
		einoEmbedder, err := embedding.NewEinoEmbedder(ctx, &cfg.Embedding)
		if err != nil {
			logger.Fatal(ctx, "failed to init embedder", err)
		}
		ragEmbedder := embedding.NewRAGEmbedder(einoEmbedder, cfg.Embedding.Provider, cfg.Embedding.Dimension)

		vectorRepo := milvus.NewRepository(milvusClient, cfg.Embedding.Dimension)
		if err := vectorRepo.EnsureDocumentChunksCollection(ctx); err != nil {
			logger.Fatal(ctx, "failed to ensure vector collection", err)
		}
		vectorIndex := milvus.NewRAGVectorIndex(vectorRepo)

		// rerank 客户端可能为 nil（未启用），必须保持接口层面的 nil
		var reranker rag.Reranker
		if rerankClient := rerank.NewClient(&cfg.Rerank); rerankClient != nil {
			reranker = rerankClient
		}

		opts := rag.Options{
			TopK:             cfg.RAG.TopK,
			RerankTopK:       cfg.RAG.RerankTopK,
			KeywordBoost:     cfg.RAG.KeywordBoost,
			CharsPerToken:    cfg.RAG.CharsPerToken,
			MaxContextTokens: cfg.RAG.MaxContextToken,
		}
		retriever = rag.NewEngine(ragEmbedder, vectorIndex, reranker, opts)

		chunker := rag.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
		indexer = rag.NewIndexer(chunker, ragEmbedder, vectorIndex, documentRepo, cfg.Embedding.BatchSize)

		defer milvusClient.Close()
	}

	// LLM 补全
	llmFactory := llm.NewEinoFactory(cfg)
	completer := llm.NewCompleter(llmFactory, cfg.LLM.DefaultProvider)

	// 外部数据源
	marketClient := marketdata.NewClient(&cfg.Sources.MarketData)
	newsClient := newsfeed.NewClient(&cfg.Sources.News)
	filingsClient := filings.NewClient(&cfg.Sources.Filings)

	// 应用层
	classifier := intent.NewClassifier(completer)
	dataCollector := collector.NewCollector(marketClient, newsClient, filingsClient, cache, &cfg.Sources, &cfg.Workflow)
	dataAnalyst := analyst.NewAnalyst(completer, retriever)
	reportWriter := reporter.NewReporter(completer)

	engine := workflow.NewEngine(classifier, dataCollector, retriever, dataAnalyst, reportWriter, historyRepo, &cfg.RAG, &cfg.Workflow)

	// HTTP 层
	handlers := router.Handlers{
		Health:   handler.NewHealthHandler(pgClient, redisClient, milvusClient),
		Research: handler.NewResearchHandler(engine),
		Document: handler.NewDocumentHandler(indexer, retriever, documentRepo),
		Market:   handler.NewMarketHandler(marketClient, cache, cfg.Sources.MarketData.CacheTTL),
		History:  handler.NewHistoryHandler(historyRepo),
	}
	r := router.New(cfg, handlers, rateLimiter)

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}
