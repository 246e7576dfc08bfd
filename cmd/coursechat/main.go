package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/coursechat/config"
	"github.com/mohammad-safakhou/coursechat/internal/ingest"
	srv "github.com/mohammad-safakhou/coursechat/internal/server"
	"github.com/mohammad-safakhou/coursechat/internal/vectorstore"
	memorystore "github.com/mohammad-safakhou/coursechat/internal/vectorstore/memory"
	qdrantstore "github.com/mohammad-safakhou/coursechat/internal/vectorstore/qdrant"
	"github.com/mohammad-safakhou/coursechat/provider"
	"github.com/mohammad-safakhou/coursechat/tools/embedding"
)

func main() {
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "coursechat"}
	root.AddCommand(serveCMD(), ingestCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}

func ingestCMD() *cobra.Command {
	var cfgPath string
	var docsPath string
	var cmd = &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a folder of course documents into the vector index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if docsPath == "" {
				docsPath = cfg.Ingest.DocsPath
			}

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			store, err := newVectorStore(cmd.Context(), cfg, embedding.New(llm))
			if err != nil {
				return err
			}

			ingestor := ingest.New(store, cfg.Ingest, nil)
			batch, err := ingestor.IngestFolder(cmd.Context(), docsPath)
			if err != nil {
				return err
			}
			fmt.Printf("ingested %d courses (%d chunks), %d duplicates skipped, %d failed\n",
				batch.CoursesAdded, batch.ChunksAdded, batch.Skipped, batch.Failed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	cmd.Flags().StringVar(&docsPath, "docs", "", "docs folder (default from config)")
	return cmd
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
