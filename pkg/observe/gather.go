package observe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hostconform/hostconform/pkg/manifest"
)

// Snapshot is the observed state of a host at the start of a run, collected
// once per domain.
type Snapshot struct {
	// Items maps each successfully observed domain to its items.
	Items map[manifest.Domain][]Item

	// Unavailable maps each failed domain to its observation error.
	Unavailable map[manifest.Domain]error
}

// Available reports whether the domain was observed successfully.
func (s *Snapshot) Available(d manifest.Domain) bool {
	_, failed := s.Unavailable[d]
	return !failed
}

// Gather observes all requested domains concurrently. Observation is
// read-only and domains are independent, so each domain gets its own
// goroutine with its own timeout. A domain whose observer is missing, fails,
// or times out ends up in Snapshot.Unavailable; the others are unaffected.
func Gather(ctx context.Context, reg *Registry, domains []manifest.Domain, timeout time.Duration, logger zerolog.Logger) *Snapshot {
	snap := &Snapshot{
		Items:       make(map[manifest.Domain][]Item, len(domains)),
		Unavailable: make(map[manifest.Domain]error),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, d := range domains {
		obs, ok := reg.Lookup(d)
		if !ok {
			snap.Unavailable[d] = fmt.Errorf("%w: no observer registered for %s", ErrUnavailable, d)
			continue
		}

		wg.Add(1)
		go func(d manifest.Domain, obs Observer) {
			defer wg.Done()

			obsCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				obsCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			items, err := obs.Observe(obsCtx, d)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn().
					Str("domain", d.String()).
					Dur("elapsed", time.Since(start)).
					Err(err).
					Msg("Domain observation failed")
				snap.Unavailable[d] = fmt.Errorf("%w: %s: %v", ErrUnavailable, d, err)
				return
			}
			logger.Debug().
				Str("domain", d.String()).
				Int("items", len(items)).
				Dur("elapsed", time.Since(start)).
				Msg("Domain observed")
			snap.Items[d] = items
		}(d, obs)
	}

	wg.Wait()
	return snap
}
