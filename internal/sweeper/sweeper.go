// Package sweeper expires provisional inbox items. Items the user
// never routed to a project or area get a deadline at capture time;
// once it passes, the sweeper removes the note from the vault and the
// record from the ledger.
package sweeper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/engram/internal/ledger"
	"github.com/kalambet/engram/internal/vault"
)

// Ledger is the slice of the commitment ledger the sweeper needs.
type Ledger interface {
	ListExpired(now time.Time) ([]ledger.Item, error)
	DeleteItem(id string) error
}

// Report summarizes one sweep pass.
type Report struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Sweeper periodically deletes expired provisional items.
type Sweeper struct {
	ledger   Ledger
	gateway  vault.Gateway
	interval time.Duration
	parallel int
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Sweeper. If interval is <= 0 it defaults to one hour.
func New(led Ledger, gw vault.Gateway, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		ledger:   led,
		gateway:  gw,
		interval: interval,
		parallel: 4,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
}

// Run sweeps once immediately, then on every interval tick until ctx
// is cancelled. Sweep failures are logged and the loop continues.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single sweep pass. Each expired item is deleted
// from the vault first, then from the ledger; a failure on one item is
// counted and the pass continues with the rest. The pass never touches
// live sessions or routed items.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	expired, err := s.ledger.ListExpired(s.now())
	if err != nil {
		return Report{}, err
	}

	report := Report{Scanned: len(expired)}
	if len(expired) == 0 {
		return report, nil
	}

	var deleted, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, item := range expired {
		g.Go(func() error {
			if err := s.deleteOne(ctx, item); err != nil {
				failed.Add(1)
				s.logger.Warn("expired item not removed",
					"id", item.ID, "title", item.Title, "error", err)
				return nil
			}
			deleted.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Deleted = int(deleted.Load())
	report.Failed = int(failed.Load())
	if report.Scanned > 0 {
		s.logger.Info("sweep complete",
			"scanned", report.Scanned, "deleted", report.Deleted, "failed", report.Failed)
	}
	return report, nil
}

func (s *Sweeper) deleteOne(ctx context.Context, item ledger.Item) error {
	if item.Path != "" {
		if err := s.gateway.Delete(ctx, item.Path); err != nil {
			return err
		}
	}
	return s.ledger.DeleteItem(item.ID)
}
