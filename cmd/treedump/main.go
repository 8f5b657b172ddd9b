// treedump prints the persisted tree for a document as JSON. Useful for
// checking what a running vault has stored without going through the engine.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/nritschel/merkledoc/internal/config"
	treestore "github.com/nritschel/merkledoc/internal/treeStore"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.yaml> <document-id>\n", os.Args[0])
		os.Exit(2)
	}

	conf, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatalf("error loading config: %s", err)
	}

	store, err := treestore.NewTreeStore(treestore.StoreConfig{
		Path:             conf.Path,
		MinimumFreeSpace: conf.MinimumFreeGB,
	})
	if err != nil {
		log.Fatalf("error opening tree store: %s", err)
	}
	defer store.Close()

	tree, err := store.Load(context.Background(), os.Args[2])
	if err != nil {
		log.Fatalf("error loading tree: %s", err)
	}

	jsonBytes, err := tree.MarshalJSON()
	if err != nil {
		log.Fatalf("error marshalling tree: %s", err)
	}
	fmt.Println(string(jsonBytes))

	stats := tree.Stats()
	fmt.Printf("nodes: %d leaves, %d internal, %d virtual, depth %d\n",
		stats.Leaves, stats.Internal, stats.Virtual, stats.Depth)

	fmt.Println("leaves:")
	for _, id := range tree.LeafIDs() {
		fmt.Printf("  %s\n", id)
	}
}
