// Package engine runs the resolution phase of ipfreq: every domain is
// resolved on a bounded pool of workers and each successful answer is
// recorded in a shared tally.Table.
//
// A failure on one domain never stops or delays the others. Failed
// domains produce no output; their errors are only logged at debug level.
package engine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/lc/ipfreq/internal/dnsresolver"
	"github.com/lc/ipfreq/internal/log"
	"github.com/lc/ipfreq/internal/tally"
)

// DefaultWorkers is the default upper bound on concurrent lookups.
const DefaultWorkers = 100

// Engine fans domains out to a resolver and aggregates the answers.
type Engine struct {
	resolver dnsresolver.Clienter
	table    *tally.Table
	out      io.Writer // receives one "domain | IP" line per recorded IP
	workers  int
}

// Stats summarizes a finished run.
type Stats struct {
	RunID    string
	Domains  int
	Resolved int64
	Failed   int64
	IPs      int64
	Workers  int
	Elapsed  time.Duration
}

// New creates an Engine. workers is the configured upper bound; the
// effective pool size is decided per run by Workers.
func New(resolver dnsresolver.Clienter, table *tally.Table, out io.Writer, workers int) *Engine {
	if out == nil {
		out = io.Discard
	}
	return &Engine{
		resolver: resolver,
		table:    table,
		out:      out,
		workers:  workers,
	}
}

// Workers returns max(1, min(configured, domains)).
func Workers(configured, domains int) int {
	n := min(configured, domains)
	if n < 1 {
		return 1
	}
	return n
}

// Run resolves every domain and returns once all of them have either been
// recorded or dropped. It never fails: per-domain errors are isolated.
func (e *Engine) Run(ctx context.Context, domains []string) Stats {
	start := time.Now()
	stats := Stats{
		RunID:   uuid.NewString(),
		Domains: len(domains),
		Workers: Workers(e.workers, len(domains)),
	}
	log.Debug("engine: run starting", "run", stats.RunID, "domains", stats.Domains, "workers", stats.Workers)

	var resolved, failed, ips atomic.Int64

	var grp errgroup.Group
	grp.SetLimit(stats.Workers)

	for _, d := range domains {
		d := d
		grp.Go(func() error {
			n, err := e.process(ctx, d)
			if err != nil {
				failed.Inc()
				log.Debug("engine: domain dropped", "run", stats.RunID, "domain", d, "error", err)
				return nil
			}
			resolved.Inc()
			ips.Add(int64(n))
			return nil
		})
	}

	// tasks never return errors
	_ = grp.Wait()

	stats.Resolved = resolved.Load()
	stats.Failed = failed.Load()
	stats.IPs = ips.Load()
	stats.Elapsed = time.Since(start)

	log.Debug("engine: run finished",
		"run", stats.RunID,
		"resolved", stats.Resolved,
		"failed", stats.Failed,
		"ips", stats.IPs,
		"elapsed", stats.Elapsed,
	)
	return stats
}

// process resolves one domain and records its IPs. A panic anywhere in the
// resolver is turned into an error so it stays confined to this domain.
func (e *Engine) process(ctx context.Context, domain string) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic resolving %q: %v", domain, r)
		}
	}()

	ips, err := e.resolver.Resolve(ctx, domain)
	if err != nil {
		return 0, err
	}
	if len(ips) == 0 {
		return 0, fmt.Errorf("no addresses for %q", domain)
	}

	e.table.AddAll(ips, func(ip string) {
		fmt.Fprintf(e.out, "%s | %s\n", domain, ip)
	})
	return len(ips), nil
}
