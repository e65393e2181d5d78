package services

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/metrics"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/repositories"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Sweeper removes images that no detection references anymore: abandoned
// intakes and leftovers of failed deletes.
type Sweeper struct {
	repo    repositories.DetectionRepository
	blobs   BlobStore
	metrics *metrics.InspectionMetrics
	logger  *log.Logger
	now     func() time.Time
}

func NewSweeper(repo repositories.DetectionRepository, blobs BlobStore, m *metrics.InspectionMetrics, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Sweeper{repo: repo, blobs: blobs, metrics: m, logger: logger.WithPrefix("sweep"), now: time.Now}
}

// Sweep deletes unreferenced blobs older than grace and returns how many
// were removed. grace must exceed the staging TTL so pending results keep
// their image.
func (s *Sweeper) Sweep(ctx context.Context, grace time.Duration) (int, error) {
	blobs, err := s.blobs.List()
	if err != nil {
		return 0, fmt.Errorf("list blobs: %w", err)
	}
	referenced, err := s.repo.ReferencedImages(ctx)
	if err != nil {
		return 0, fmt.Errorf("load references: %w", err)
	}

	cutoff := s.now().Add(-grace)
	const maxConcurrent = 4
	sem := semaphore.NewWeighted(maxConcurrent)
	g, gctx := errgroup.WithContext(ctx)
	var removed atomic.Int64

	for _, b := range blobs {
		if _, ok := referenced[b.Ref]; ok || b.ModTime.After(cutoff) {
			continue
		}
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := s.blobs.Delete(b.Ref); err != nil {
				// één kapotte blob mag de rest niet blokkeren
				s.logger.Warn("failed to remove orphan", "ref", b.Ref, "err", err)
				return nil
			}
			removed.Add(1)
			return nil
		})
	}

	err = g.Wait()
	n := int(removed.Load())
	s.metrics.AddSweepRemoved(n)
	s.logger.Info("sweep finished", "removed", n, "scanned", len(blobs))
	if err == nil {
		err = ctx.Err()
	}
	return n, err
}
