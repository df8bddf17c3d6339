package psdbench

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
)

// LoadDocuments reads every path into memory, at most limit files at a time.
// Loading happens before any measurement starts, and each buffer is shared
// by all jobs for that file.
func LoadDocuments(ctx context.Context, paths []string, limit int) (map[string][]byte, error) {
	var mu sync.Mutex

	docs := make(map[string][]byte, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for _, p := range paths {
		p := p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			b, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("could not load document: %w", err)
			}

			mu.Lock()
			docs[p] = b
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return docs, nil
}
