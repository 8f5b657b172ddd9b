// Package treestore persists trees to a badger-backed key-value store,
// bucketed by shard key so large vaults do not pile up under one prefix.
package treestore

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	treecodec "github.com/nritschel/merkledoc/internal/treeCodec"
	"github.com/nritschel/merkledoc/pkg/types"
)

var log *logrus.Logger

type StoreConfig struct {
	Path             string
	MinimumFreeSpace int // in GB
	Logger           *logrus.Logger
}

// TreeStore implements types.TreeStore on badger. Calls may block on disk;
// callers treat them as the slow boundary of the engine.
type TreeStore struct {
	config       StoreConfig
	badgerDB     *badger.DB
	readCounter  uint64
	writeCounter uint64
}

func NewTreeStore(config StoreConfig) (*TreeStore, error) {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	log = config.Logger

	if err := config.check(); err != nil {
		return nil, fmt.Errorf("error checking config for TreeStore: %w", err)
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil
	opts.ValueLogFileSize = 1024 * 1024 * 100 // 100MB value log files
	opts.SyncWrites = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger at %s: %w", config.Path, err)
	}

	if err := displayDiskUsage(config.Path); err != nil {
		log.Warnf("could not read disk usage: %v", err)
	}

	return &TreeStore{
		config:   config,
		badgerDB: db,
	}, nil
}

func treeKey(shardKey, documentID string) []byte {
	return []byte("tree:" + shardKey + ":" + documentID)
}

// Load returns the most recently persisted tree for a document, or
// types.ErrTreeNotFound on the first pass.
func (s *TreeStore) Load(ctx context.Context, documentID string) (*types.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	atomic.AddUint64(&s.readCounter, 1)

	var raw []byte
	err := s.badgerDB.View(func(txn *badger.Txn) error {
		item, err := txn.Get(treeKey(types.ShardKeyFor(documentID), documentID))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.ErrTreeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading tree for %q: %w", documentID, err)
	}

	tree, err := treecodec.Decode(raw)
	if err != nil {
		log.WithFields(logrus.Fields{
			"document": documentID,
		}).Errorf("stored tree does not decode: %v", err)
		return nil, fmt.Errorf("error decoding stored tree for %q: %w", documentID, err)
	}
	return tree, nil
}

// Store persists a tree, replacing any prior version for the same document.
func (s *TreeStore) Store(ctx context.Context, tree *types.Tree) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	atomic.AddUint64(&s.writeCounter, 1)

	raw, err := treecodec.Encode(tree)
	if err != nil {
		return fmt.Errorf("error encoding tree for %q: %w", tree.DocumentID, err)
	}

	err = s.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Set(treeKey(tree.ShardKey, tree.DocumentID), raw)
	})
	if err != nil {
		return fmt.Errorf("error storing tree for %q: %w", tree.DocumentID, err)
	}
	return nil
}

// Delete removes the persisted tree for a document. Deleting a document that
// was never stored is not an error.
func (s *TreeStore) Delete(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	atomic.AddUint64(&s.writeCounter, 1)

	err := s.badgerDB.Update(func(txn *badger.Txn) error {
		return txn.Delete(treeKey(types.ShardKeyFor(documentID), documentID))
	})
	if err != nil {
		return fmt.Errorf("error deleting tree for %q: %w", documentID, err)
	}
	return nil
}

// GarbageCollect rewrites badger value log files until nothing is left to
// reclaim.
func (s *TreeStore) GarbageCollect() error {
	for {
		err := s.badgerDB.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Counters reports the lifetime read and write operation counts.
func (s *TreeStore) Counters() (reads, writes uint64) {
	return atomic.LoadUint64(&s.readCounter), atomic.LoadUint64(&s.writeCounter)
}

func (s *TreeStore) Close() error {
	return s.badgerDB.Close()
}
