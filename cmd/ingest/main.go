// Package main provides a CLI for loading documents into the chat index
// without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/docstore"
	"docchat/internal/embedding"
	"docchat/internal/extract"
	"docchat/internal/generation"
	"docchat/internal/memory"
	"docchat/internal/rag"
	"docchat/internal/vectorstore"
)

var chunkStrategy string

var rootCmd = &cobra.Command{
	Use:   "docchat-ingest",
	Short: "Document chat index management tool",
	Long:  "CLI tool for loading, listing, and removing documents in the chat index",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Chunk, embed, and index a document",
	Long: `Reads a .txt or .md file, splits it into chunks, embeds each chunk,
and stores everything in the docstore and the vector index.

Environment variables:
  QDRANT_HOST       Qdrant hostname (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  DOCSTORE_PATH     Document database file (default: docchat.db)
  USE_COHERE        Use Cohere for embeddings (default: false)
  COHERE_API_KEY    Cohere API key
  HF_API_KEY        Hugging Face API key`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Remove a document from the index and the docstore",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	ingestCmd.Flags().StringVar(&chunkStrategy, "strategy", chunker.StrategySentence,
		"chunking strategy: sentence or sliding")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	// Load .env if present for local development, ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildPipeline wires the full pipeline from environment configuration.
// Construction performs no network I/O; Qdrant and Redis connect lazily.
func buildPipeline() (*rag.Pipeline, *docstore.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := slog.Default()

	docs, err := docstore.Open(cfg.DocstorePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open docstore: %w", err)
	}

	chk, err := chunker.New(cfg.ChunkWindow, cfg.ChunkOverlap)
	if err != nil {
		docs.Close()
		return nil, nil, err
	}

	index := vectorstore.New(vectorstore.Config{
		Host:           cfg.QdrantHost,
		Port:           cfg.QdrantPort,
		Collection:     cfg.Collection,
		Dimension:      cfg.VectorDimension,
		ConnectRetries: 3,
		ConnectBackoff: 2 * time.Second,
	}, logger)

	history, err := memory.New(cfg.RedisURL)
	if err != nil {
		docs.Close()
		return nil, nil, err
	}

	embedder := embedding.New(cfg, logger)
	generator := generation.New(cfg, logger)
	return rag.NewPipeline(chk, embedder, index, docs, history, generator, logger), docs, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	filename := filepath.Base(path)
	text, err := extract.FromUpload(filename, "", data)
	if err != nil {
		return fmt.Errorf("extract %s: %w", filename, err)
	}

	pipeline, docs, err := buildPipeline()
	if err != nil {
		return err
	}
	defer docs.Close()

	start := time.Now()
	result, err := pipeline.Ingest(ctx, filename, "", text, chunkStrategy)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Println("Ingest complete!")
	fmt.Printf("  Document: %s\n", result.DocumentID)
	fmt.Printf("  Chunks:   %d\n", result.Chunks)
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	pipeline, docs, err := buildPipeline()
	if err != nil {
		return err
	}
	defer docs.Close()

	infos, err := pipeline.ListDocuments()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No documents indexed.")
		return nil
	}

	for _, info := range infos {
		fmt.Printf("%s  %-30s  %4d chunks  %s\n",
			info.ID, info.Filename, info.ChunkCount, info.UploadedAt.Format(time.RFC3339))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	pipeline, docs, err := buildPipeline()
	if err != nil {
		return err
	}
	defer docs.Close()

	if err := pipeline.DeleteDocument(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
