// Package main runs the document chat HTTP service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/docstore"
	"docchat/internal/embedding"
	"docchat/internal/generation"
	"docchat/internal/memory"
	"docchat/internal/rag"
	"docchat/internal/server"
	"docchat/internal/vectorstore"
)

func main() {
	// Load .env if present for local development; production relies on
	// real environment variables.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	docs, err := docstore.Open(cfg.DocstorePath)
	if err != nil {
		return err
	}
	defer docs.Close()

	chk, err := chunker.New(cfg.ChunkWindow, cfg.ChunkOverlap)
	if err != nil {
		return err
	}

	// The vector store connects lazily; a down Qdrant must not stop the
	// process from serving uploads and keyword-only answers.
	index := vectorstore.New(vectorstore.Config{
		Host:           cfg.QdrantHost,
		Port:           cfg.QdrantPort,
		Collection:     cfg.Collection,
		Dimension:      cfg.VectorDimension,
		ConnectRetries: 3,
		ConnectBackoff: 2 * time.Second,
	}, logger)
	defer index.Close()

	history, err := memory.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer history.Close()

	embedder := embedding.New(cfg, logger)
	generator := generation.New(cfg, logger)
	pipeline := rag.NewPipeline(chk, embedder, index, docs, history, generator, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(pipeline, index, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
