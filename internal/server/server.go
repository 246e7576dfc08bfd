package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/coursechat/config"
	"github.com/mohammad-safakhou/coursechat/internal/ingest"
	"github.com/mohammad-safakhou/coursechat/internal/rag"
	"github.com/mohammad-safakhou/coursechat/internal/vectorstore"
	memorystore "github.com/mohammad-safakhou/coursechat/internal/vectorstore/memory"
	qdrantstore "github.com/mohammad-safakhou/coursechat/internal/vectorstore/qdrant"
	"github.com/mohammad-safakhou/coursechat/provider"
	"github.com/mohammad-safakhou/coursechat/session/inmemory"
	"github.com/mohammad-safakhou/coursechat/tools"
	"github.com/mohammad-safakhou/coursechat/tools/embedding"
	"github.com/mohammad-safakhou/coursechat/tools/outline"
	"github.com/mohammad-safakhou/coursechat/tools/search"
)

// Run wires the whole service together and serves the HTTP API.
func Run(cfg *config.Config) error {
	ctx := context.Background()
	logger := log.New(log.Writer(), "[SERVER] ", log.LstdFlags)

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}
	embedder := embedding.New(llm)

	store, err := newVectorStore(ctx, cfg, embedder)
	if err != nil {
		return err
	}

	ingestor := ingest.New(store, cfg.Ingest, nil)
	if cfg.Ingest.DocsPath != "" {
		batch, err := ingestor.IngestFolder(ctx, cfg.Ingest.DocsPath)
		if err != nil {
			logger.Printf("startup ingestion skipped: %v", err)
		} else {
			logger.Printf("startup ingestion: %d courses, %d chunks (%d duplicates, %d failed)",
				batch.CoursesAdded, batch.ChunksAdded, batch.Skipped, batch.Failed)
		}
	}

	registry, err := tools.NewRegistry(
		search.New(store, cfg.Search.MaxResults),
		outline.New(store),
	)
	if err != nil {
		return err
	}

	sessions := inmemory.NewStore(cfg.Session.MaxExchanges)
	orch := rag.NewOrchestrator(llm, sessions, registry, nil)

	e := newEcho(logger)
	registerRoutes(e, orch, sessions, store)

	logger.Printf("listening on %s", cfg.Server.Address)
	return e.Start(cfg.Server.Address)
}

func newVectorStore(ctx context.Context, cfg *config.Config, embedder vectorstore.Embedder) (vectorstore.Store, error) {
	switch cfg.Vector.Backend {
	case "memory":
		return memorystore.New(embedder, cfg.Vector.SimilarityFloor), nil
	case "qdrant":
		return qdrantstore.New(ctx, cfg.Vector, cfg.LLM.EmbeddingDimensions, embedder)
	default:
		return nil, fmt.Errorf("unsupported vector backend %q", cfg.Vector.Backend)
	}
}

func newEcho(logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]any{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}
