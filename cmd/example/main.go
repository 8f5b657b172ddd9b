package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nritschel/merkledoc"
	"github.com/nritschel/merkledoc/pkg/types"
)

// A minimal end-to-end pass: build a small document, edit one paragraph,
// rebuild, and print the diff the enrichment stage would receive.
func main() {
	dir, err := os.MkdirTemp("", "merkledoc-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	engine, err := merkledoc.New(merkledoc.Config{
		Path:          dir,
		MinimumFreeGB: 1,
		BuildTimeout:  5 * time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to initialize engine: %s", err)
	}
	defer engine.Close()

	ctx := context.Background()

	doc := note("intro text", "body text", "footer text")
	result, err := engine.ProcessDocument(ctx, "notes/example.md", doc)
	if err != nil {
		log.Fatalf("First pass failed: %s", err)
	}
	fmt.Printf("first pass: %d blocks added, root %s\n",
		len(result.Diff.Added), result.Tree.RootHash)

	edited := note("intro text", "body text, edited", "footer text")
	result, err = engine.ProcessDocument(ctx, "notes/example.md", edited)
	if err != nil {
		log.Fatalf("Second pass failed: %s", err)
	}
	result.Diff.PrettyPrint()

	stats := engine.CacheStats()
	fmt.Printf("cache: %d hits, %d misses, %d entries\n", stats.Hits, stats.Misses, stats.Len)
}

func note(paragraphs ...string) *types.Block {
	root := &types.Block{ID: "doc", Type: types.BlockDocument}
	for i, p := range paragraphs {
		root.Children = append(root.Children, &types.Block{
			ID:      types.BlockID(fmt.Sprintf("p%d", i+1)),
			Type:    types.BlockParagraph,
			Content: []byte(p),
		})
	}
	return root
}
