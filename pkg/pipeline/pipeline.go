// Package pipeline orchestrates one processing pass per document: load the
// previously persisted tree, build the new one, diff, persist. The diff
// result is what downstream enrichment consumes; the pipeline itself never
// decides what to do with a changed block.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nritschel/merkledoc/internal/merkle"
	"github.com/nritschel/merkledoc/pkg/logging"
	"github.com/nritschel/merkledoc/pkg/types"
	workerpool "github.com/nritschel/merkledoc/pkg/workerPool"
)

// Document is one unit of work for a batch pass.
type Document struct {
	ID   string
	Root *types.Block
}

// Result is the outcome of one document pass. StoreErr is set when the tree
// was built and diffed but could not be persisted; the diff is still valid
// and the caller decides whether to retry the store.
type Result struct {
	DocumentID string
	Diff       *types.DiffResult
	Tree       *types.Tree
	Err        error
	StoreErr   error
}

type Pipeline struct {
	store        types.TreeStore
	builder      *merkle.Builder
	pool         *workerpool.Pool
	buildTimeout time.Duration
	log          *slog.Logger
}

func New(store types.TreeStore, builder *merkle.Builder, buildTimeout time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default
	}
	return &Pipeline{
		store:        store,
		builder:      builder,
		pool:         workerpool.NewPool(workerpool.Config{}),
		buildTimeout: buildTimeout,
		log:          logger,
	}
}

// Process runs one pass for a document. Malformed input and exceeded
// deadlines fail the pass; a persistence failure does not, see Result.
func (p *Pipeline) Process(ctx context.Context, documentID string, root *types.Block) (*Result, error) {
	runID := uuid.NewString()
	log := p.log.With("document", documentID, "run", runID)

	prev, err := p.store.Load(ctx, documentID)
	if errors.Is(err, types.ErrTreeNotFound) {
		prev = nil
	} else if err != nil {
		return nil, fmt.Errorf("loading previous tree: %w", err)
	}

	buildCtx := ctx
	if p.buildTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, p.buildTimeout)
		defer cancel()
	}

	started := time.Now()
	tree, err := p.builder.Build(buildCtx, documentID, root)
	if err != nil {
		return nil, err
	}

	diff, err := merkle.Diff(buildCtx, prev, tree)
	if err != nil {
		return nil, err
	}

	result := &Result{
		DocumentID: documentID,
		Diff:       diff,
		Tree:       tree,
	}
	if err := p.store.Store(ctx, tree); err != nil {
		log.Warn("tree built and diffed but not persisted",
			"error", err)
		result.StoreErr = err
	}

	log.Debug("processed document",
		"leaves", tree.LeafCount,
		"changed", len(diff.Changed),
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"unchanged", diff.Unchanged,
		"took", time.Since(started))
	return result, nil
}

// ProcessBatch runs passes for many documents concurrently on the worker
// pool. Per-document failures land in the corresponding Result; one bad
// document never stops the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, docs []Document) []*Result {
	room := workerpool.NewRoom[*Result](p.pool, len(docs))
	for _, doc := range docs {
		doc := doc
		room.Submit(func() *Result {
			result, err := p.Process(ctx, doc.ID, doc.Root)
			if err != nil {
				return &Result{DocumentID: doc.ID, Err: err}
			}
			return result
		})
	}
	return room.Collect()
}

func (p *Pipeline) Close() {
	p.pool.Close()
}
