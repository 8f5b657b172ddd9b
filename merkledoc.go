// Package merkledoc is the incremental change-detection engine behind the
// knowledge-processing pipeline. It mirrors a document's block hierarchy as a
// content-addressed hash tree, diffs successive versions, and persists trees
// through a badger-backed store, so that unchanged content is never
// reprocessed downstream.
package merkledoc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nritschel/merkledoc/internal/merkle"
	nodecache "github.com/nritschel/merkledoc/internal/nodeCache"
	treestore "github.com/nritschel/merkledoc/internal/treeStore"
	"github.com/nritschel/merkledoc/pkg/logging"
	"github.com/nritschel/merkledoc/pkg/pipeline"
	"github.com/nritschel/merkledoc/pkg/types"
)

// Engine wires the shared node cache, the tree builder/differ and the
// persistent store into one handle. Documents can be processed concurrently;
// the cache is the only shared mutable state.
type Engine struct {
	store  *treestore.TreeStore
	cache  *nodecache.NodeCache
	pipe   *pipeline.Pipeline
	config Config
	log    *slog.Logger
	stopGC chan struct{}
}

func New(conf Config) (*Engine, error) {
	conf.applyDefaults()

	store, err := treestore.NewTreeStore(treestore.StoreConfig{
		Path:             conf.Path,
		MinimumFreeSpace: conf.MinimumFreeGB,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating TreeStore: %w", err)
	}

	cache := nodecache.New(conf.CacheCapacity)
	builder := merkle.NewBuilder(cache, conf.BranchFactor)

	e := &Engine{
		store:  store,
		cache:  cache,
		pipe:   pipeline.New(store, builder, conf.BuildTimeout, conf.Logger),
		config: conf,
		log:    conf.Logger,
		stopGC: make(chan struct{}),
	}

	if conf.GarbageCollectionInterval > 0 {
		go e.runGarbageCollection()
	}
	return e, nil
}

// ProcessDocument runs one full pass for a document: build, diff against the
// persisted previous version, persist the new tree. See pipeline.Result for
// the persistence-failure contract.
func (e *Engine) ProcessDocument(ctx context.Context, documentID string, root *types.Block) (*pipeline.Result, error) {
	return e.pipe.Process(ctx, documentID, root)
}

// ProcessBatch processes many documents concurrently.
func (e *Engine) ProcessBatch(ctx context.Context, docs []pipeline.Document) []*pipeline.Result {
	return e.pipe.ProcessBatch(ctx, docs)
}

// Diff compares two in-memory trees without touching storage.
func (e *Engine) Diff(ctx context.Context, prev, curr *types.Tree) (*types.DiffResult, error) {
	return merkle.Diff(ctx, prev, curr)
}

// LoadTree returns the persisted tree for a document, or
// types.ErrTreeNotFound.
func (e *Engine) LoadTree(ctx context.Context, documentID string) (*types.Tree, error) {
	return e.store.Load(ctx, documentID)
}

// DeleteDocument removes the persisted tree for a document.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) error {
	return e.store.Delete(ctx, documentID)
}

// CacheStats reports shared node cache counters for telemetry.
func (e *Engine) CacheStats() nodecache.Stats {
	return e.cache.Stats()
}

func (e *Engine) runGarbageCollection() {
	ticker := time.NewTicker(e.config.GarbageCollectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := e.store.GarbageCollect(); err != nil {
				e.log.Warn("value log garbage collection failed", "error", err)
			}
		case <-e.stopGC:
			return
		}
	}
}

func (e *Engine) Close() error {
	close(e.stopGC)
	e.pipe.Close()
	return e.store.Close()
}

// Config configures an Engine instance.
type Config struct {
	// Path is the data directory for the badger store.
	Path string
	// MinimumFreeGB is a free-space threshold checked at startup.
	MinimumFreeGB int
	// BranchFactor bounds node fan-out before synthetic grouping.
	BranchFactor int
	// CacheCapacity is the shared node cache size in entries.
	CacheCapacity int
	// BuildTimeout is the per-document deadline for build plus diff.
	// Zero disables the deadline.
	BuildTimeout time.Duration
	// GarbageCollectionInterval is how often the badger value log is
	// compacted. Zero disables background collection.
	GarbageCollectionInterval time.Duration
	// Logger is an optional structured logger. If nil, a stderr logger is
	// used.
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.BranchFactor == 0 {
		c.BranchFactor = merkle.DefaultBranchFactor
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = nodecache.DefaultCapacity
	}
	if c.Logger == nil {
		c.Logger = logging.Default
	}
}
