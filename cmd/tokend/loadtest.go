package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/credstore"
	"github.com/MrEthical07/goIssuer/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const loadtestSecret = "loadtest-signing-secret-0123456789"

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	memory      bool
}

func newLoadtestCmd(a *app) *cobra.Command {
	var opts loadtestOptions

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure issue and renew latency against the credential store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return fmt.Errorf("users, concurrency, and ops must be > 0")
			}
			return a.loadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.users, "users", 1000, "number of users to seed")
	f.IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	f.IntVar(&opts.ops, "ops", 20000, "operations per phase (issue + renew)")
	f.BoolVar(&opts.memory, "memory", true, "use an in-process Redis instead of --redis-addr")
	return cmd
}

func (a *app) loadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	var (
		rdb     redis.UniversalClient
		cleanup func()
	)
	if opts.memory {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("starting in-memory redis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		rdb, cleanup = client, func() { _ = client.Close(); mr.Close() }
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	} else {
		client := redis.NewClient(redisOptions(a.v))
		rdb, cleanup = client, func() { _ = client.Close() }
		fmt.Fprintf(out, "using redis at %s\n", client.Options().Addr)
	}
	defer cleanup()

	// Minimum-cost parameters keep the phases measuring the issuer, not argon2.
	hasher, err := password.NewHasher(password.Config{
		Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		return err
	}
	store, err := credstore.New(rdb, credstore.Options{
		Prefix: "loadtest",
		Hasher: hasher,
		Logger: a.logger,
	})
	if err != nil {
		return err
	}

	cfg := goIssuer.DefaultConfig()
	cfg.Issuer = "tokend-loadtest"
	cfg.Audiences = []string{"loadtest"}
	cfg.SigningSecret = []byte(loadtestSecret)
	engine, err := goIssuer.New().WithConfig(cfg).WithVerifier(store).WithLatencyHistograms(true).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	creds := make([]goIssuer.Credentials, opts.users)
	fmt.Fprintf(out, "seeding %d users...\n", opts.users)
	startSeed := time.Now()
	for i := range creds {
		creds[i] = goIssuer.Credentials{Username: fmt.Sprintf("user-%d", i), Password: fmt.Sprintf("pw-%08d", i)}
		rec := goIssuer.IdentityRecord{
			Email:          fmt.Sprintf("user-%d@loadtest.local", i),
			PrimaryID:      int64(i),
			PrimaryGroupID: int64(i % 16),
			RoleID:         int64(i % 4),
		}
		if err := store.Put(ctx, creds[i].Username, creds[i].Password, rec); err != nil {
			return fmt.Errorf("seeding %s: %w", creds[i].Username, err)
		}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	var tokensMu sync.Mutex
	tokens := make([]string, opts.users)
	issueStats := runPhase(opts.ops, opts.concurrency, 7919, func(r *rand.Rand) error {
		idx := r.Intn(len(creds))
		tok, err := engine.Issue(ctx, creds[idx])
		if err == nil {
			tokensMu.Lock()
			tokens[idx] = tok.AccessToken
			tokensMu.Unlock()
		}
		return err
	})

	principals := make([]goIssuer.Principal, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		p, err := engine.Authenticate(tok)
		if err != nil {
			return fmt.Errorf("authenticating issued token: %w", err)
		}
		principals = append(principals, p)
	}
	if len(principals) == 0 {
		return fmt.Errorf("issue phase produced no tokens")
	}

	renewStats := runPhase(opts.ops, opts.concurrency, 6151, func(r *rand.Rand) error {
		_, err := engine.Renew(ctx, principals[r.Intn(len(principals))])
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "issue", issueStats)
	printStats(out, "renew", renewStats)

	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "engine: issue_success=%d issue_unauthorized=%d renew_success=%d renew_unauthorized=%d\n",
		snap.Counters[goIssuer.MetricIssueSuccess],
		snap.Counters[goIssuer.MetricIssueUnauthorized],
		snap.Counters[goIssuer.MetricRenewSuccess],
		snap.Counters[goIssuer.MetricRenewUnauthorized],
	)
	return nil
}

// runPhase runs op ops times across concurrency workers.
func runPhase(ops, concurrency int, seed int64, op func(*rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}

				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
