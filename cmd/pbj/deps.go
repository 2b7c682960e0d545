package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pbjrag/internal/config"
	"pbjrag/internal/embedding"
	"pbjrag/internal/orchestrator"
	"pbjrag/internal/store"
)

// openDeps builds the embedder and store for indexing. When indexing is
// disabled it returns deps carrying only the workspace and a no-op cleanup.
func openDeps(c *config.Config) (orchestrator.Deps, func(), error) {
	deps := orchestrator.Deps{Workspace: workspace}
	if !c.IsIndexingEnabled() {
		return deps, func() {}, nil
	}

	engine, err := embedding.NewEngine(embedding.ConfigFrom(c.Embedding))
	if err != nil {
		if errors.Is(err, embedding.ErrDisabled) {
			return deps, func() {}, nil
		}
		return orchestrator.Deps{}, nil, fmt.Errorf("embedding engine: %w", err)
	}

	fs, err := store.Open(workspacePath(c.Store.DatabasePath))
	if err != nil {
		return orchestrator.Deps{}, nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("indexing enabled",
		zap.String("engine", engine.Name()),
		zap.String("store", fs.Backend()),
		zap.Int("dimensions", fs.Dimensions()))

	cleanup := func() {
		if err := fs.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}
	deps.Embedder, deps.Store = engine, fs
	return deps, cleanup, nil
}
