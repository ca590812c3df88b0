package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ewilliams-labs/moodmix/internal/core/domain"
	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/metrics"
)

// Config tunes candidate gathering.
type Config struct {
	PoolFloor      int           // minimum pool target
	PoolMultiplier int           // pool target is max(PoolFloor, limit*PoolMultiplier)
	SearchTimeout  time.Duration // per catalog call
	Parallelism    int           // concurrent searches; <= 1 runs sequentially
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		PoolFloor:      50,
		PoolMultiplier: 5,
		SearchTimeout:  10 * time.Second,
		Parallelism:    1,
	}
}

// Aggregator issues planned queries, deduplicates the results and samples them.
type Aggregator struct {
	searcher ports.TrackSearcher
	rng      Rand
	cfg      Config
	log      zerolog.Logger
}

// NewAggregator builds an Aggregator. Zero config fields take their defaults.
func NewAggregator(searcher ports.TrackSearcher, rng Rand, cfg Config, log zerolog.Logger) *Aggregator {
	def := DefaultConfig()
	if cfg.PoolFloor <= 0 {
		cfg.PoolFloor = def.PoolFloor
	}
	if cfg.PoolMultiplier <= 0 {
		cfg.PoolMultiplier = def.PoolMultiplier
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if rng == nil {
		rng = NewRand(0)
	}
	return &Aggregator{searcher: searcher, rng: rng, cfg: cfg, log: log}
}

type searchJob struct {
	query  string
	limit  int
	offset int
	tier   string
}

// tierFor returns the fetch size, maximum random offset and tier name for the query at idx.
func tierFor(idx int) (size, maxOffset int, tier string) {
	switch {
	case idx < 3:
		return 15, 3, "primary"
	case idx < 5:
		return 10, 5, "secondary"
	default:
		return 8, 8, "tail"
	}
}

// Aggregate runs queries in priority order and returns at most limit distinct tracks
// in random order. An empty result is not an error.
func (a *Aggregator) Aggregate(ctx context.Context, queries []string, fallback string, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must be positive"}
	}
	if len(queries) > MaxQueries {
		queries = queries[:MaxQueries]
	}

	// All offsets are drawn before any search so that the random stream does not
	// depend on how many queries end up being issued.
	jobs := make([]searchJob, len(queries))
	for idx, q := range queries {
		size, maxOffset, tier := tierFor(idx)
		jobs[idx] = searchJob{query: q, limit: size, offset: a.rng.IntN(maxOffset + 1), tier: tier}
	}

	target := max(a.cfg.PoolFloor, limit*a.cfg.PoolMultiplier)
	pool, err := a.collect(ctx, jobs, target, "")
	if err != nil {
		return nil, err
	}

	if pool.empty() {
		if fallback == "" {
			fallback = domain.DefaultPrimaryGenre
		}
		metrics.FallbackSearches.Inc()
		job := searchJob{query: fallback, limit: min(limit*2, 20), offset: 0, tier: "fallback"}
		pool.addAll(a.search(ctx, job))
	}

	metrics.RecordPool("mood", pool.len())
	return a.sample(pool, limit), nil
}

// FindSimilar gathers tracks related to seed. The seed itself is never returned.
func (a *Aggregator) FindSimilar(ctx context.Context, seed domain.Track, features *domain.FeatureVector, limit int) ([]domain.Track, error) {
	if limit <= 0 {
		return nil, &domain.ValidationError{Field: "limit", Reason: "must be positive"}
	}

	queries := PlanSimilar(seed, features)
	jobs := make([]searchJob, len(queries))
	for i, q := range queries {
		jobs[i] = searchJob{query: q, limit: min(20, limit*2), offset: 0, tier: "similar"}
	}

	pool, err := a.collect(ctx, jobs, limit*3, seed.ID)
	if err != nil {
		return nil, err
	}

	metrics.RecordPool("similar", pool.len())
	return a.sample(pool, limit), nil
}

// collect fills a pool from jobs until target is reached. Failed searches are skipped.
// Only cancellation of ctx itself is returned as an error.
func (a *Aggregator) collect(ctx context.Context, jobs []searchJob, target int, exclude string) (*candidatePool, error) {
	pool := newCandidatePool(target, exclude)

	if a.cfg.Parallelism > 1 && len(jobs) > 1 {
		results := make([][]domain.Track, len(jobs))
		var g errgroup.Group
		g.SetLimit(a.cfg.Parallelism)
		for i, job := range jobs {
			g.Go(func() error {
				results[i] = a.search(ctx, job)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("aggregator: %w", err)
		}
		for _, tracks := range results {
			if pool.addAll(tracks) {
				break
			}
		}
		return pool, nil
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("aggregator: %w", err)
		}
		if pool.addAll(a.search(ctx, job)) {
			break
		}
	}
	return pool, nil
}

// search performs one catalog call under the per-call timeout. Errors are logged and
// reported as an empty result.
func (a *Aggregator) search(ctx context.Context, job searchJob) []domain.Track {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.SearchTimeout)
	defer cancel()

	tracks, err := a.searcher.Search(callCtx, job.query, job.limit, job.offset)
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.RecordSearch(job.tier, outcome)
		a.log.Warn().Err(err).
			Str("query", job.query).
			Int("limit", job.limit).
			Int("offset", job.offset).
			Msg("catalog search failed, skipping query")
		return nil
	}
	metrics.RecordSearch(job.tier, metrics.OutcomeOK)
	a.log.Debug().Str("query", job.query).Int("offset", job.offset).Int("results", len(tracks)).Msg("catalog search")
	return tracks
}

func (a *Aggregator) sample(pool *candidatePool, limit int) []domain.Track {
	tracks := pool.tracks
	if len(tracks) == 0 {
		return []domain.Track{}
	}
	a.rng.Shuffle(len(tracks), func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] })
	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks
}

// candidatePool is an insertion-ordered set of tracks keyed by id.
type candidatePool struct {
	target int
	seen   map[string]struct{}
	tracks []domain.Track
}

func newCandidatePool(target int, exclude string) *candidatePool {
	p := &candidatePool{target: target, seen: make(map[string]struct{})}
	if exclude != "" {
		p.seen[exclude] = struct{}{}
	}
	return p
}

// addAll adds unseen tracks until the pool is full. It reports whether the pool is full.
func (p *candidatePool) addAll(tracks []domain.Track) bool {
	for _, t := range tracks {
		if p.full() {
			break
		}
		if t.ID == "" {
			continue
		}
		if _, dup := p.seen[t.ID]; dup {
			continue
		}
		p.seen[t.ID] = struct{}{}
		p.tracks = append(p.tracks, t)
	}
	return p.full()
}

func (p *candidatePool) full() bool  { return p.target > 0 && len(p.tracks) >= p.target }
func (p *candidatePool) empty() bool { return len(p.tracks) == 0 }
func (p *candidatePool) len() int    { return len(p.tracks) }
