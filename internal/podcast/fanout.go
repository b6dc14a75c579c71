package podcast

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

type segmentFunc func(ctx context.Context, i int) (Artifact, error)

// forEach runs fn for positions 0..n-1, sequentially when workers <= 1 and
// otherwise with at most workers in flight. Every call finishes before it
// returns; the result is sorted by segment index.
func forEach(ctx context.Context, n, workers int, fn segmentFunc) ([]Artifact, error) {
	if workers <= 1 {
		out := make([]Artifact, 0, n)
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			art, err := fn(ctx, i)
			if err != nil {
				return nil, err
			}
			out = append(out, art)
		}
		return SortArtifacts(out), nil
	}

	var mu sync.Mutex
	byIndex := make(map[int]Artifact, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			art, err := fn(gctx, i)
			if err != nil {
				return err
			}
			mu.Lock()
			byIndex[art.SegmentIndex] = art
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(byIndex) != n {
		return nil, fmt.Errorf("collected %d artifacts for %d segments", len(byIndex), n)
	}

	out := make([]Artifact, 0, len(byIndex))
	for _, art := range byIndex {
		out = append(out, art)
	}
	return SortArtifacts(out), nil
}
