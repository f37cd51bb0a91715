package plan

import (
	"context"
	"errors"
	"sync"

	"github.com/olimci/foldersync/pkg/digest"
	"github.com/olimci/foldersync/pkg/snapshot"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DigestComparer compares the digests of a relative path under two roots.
type DigestComparer struct {
	Hasher     digest.Hasher
	SourceRoot string
	DestRoot   string
	Logger     zerolog.Logger
}

// Compare returns whether the digests at rel differ.
func (c DigestComparer) Compare(rel string) (bool, error) {
	srcDigest, err := c.Hasher.ForPath(snapshot.Join(c.SourceRoot, rel))
	if err != nil {
		return false, err
	}
	dstDigest, err := c.Hasher.ForPath(snapshot.Join(c.DestRoot, rel))
	if err != nil {
		return false, err
	}
	return !srcDigest.Equal(dstDigest), nil
}

// Differs logs hashing failures and reports them as unchanged.
func (c DigestComparer) Differs(rel string) bool {
	differs, err := c.Compare(rel)
	if err != nil {
		event := c.Logger.Error()
		if errors.Is(err, digest.ErrNotHashable) {
			event = c.Logger.Warn()
		}
		event.Err(err).Str("path", rel).Msg("could not hash path, treating as unchanged")
		return false
	}
	c.Logger.Debug().Str("path", rel).Bool("differs", differs).Msg("compared digests")
	return differs
}

// Prehash evaluates cmp for every path on up to workers goroutines and
// returns a Comparer answering from the collected results. Paths that were
// not prehashed fall through to cmp.
func Prehash(ctx context.Context, cmp Comparer, paths []string, workers int) (Comparer, error) {
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	results := make(map[string]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			differs := cmp.Differs(rel)

			mu.Lock()
			results[rel] = differs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ComparerFunc(func(rel string) bool {
		if differs, ok := results[rel]; ok {
			return differs
		}
		return cmp.Differs(rel)
	}), nil
}
