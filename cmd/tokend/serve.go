package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/credstore"
	"github.com/MrEthical07/goIssuer/httpapi"
	"github.com/MrEthical07/goIssuer/metrics/export/prometheus"
	"github.com/MrEthical07/goIssuer/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		memory bool
		seeds  []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the token HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, memory, seeds)
		},
	}

	cmd.Flags().String("addr", ":8080", "address to listen on")
	cmd.Flags().Bool("trust-proxy", false, "take the client IP from X-Forwarded-For")
	cmd.Flags().BoolVar(&memory, "memory", false, "use an in-process Redis instead of --redis-addr")
	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "seed a user: username:password[:email:primaryID:groupID:roleID] (repeatable)")
	_ = a.v.BindPFlag(keyHTTPAddr, cmd.Flags().Lookup("addr"))
	_ = a.v.BindPFlag(keyTrustProxy, cmd.Flags().Lookup("trust-proxy"))
	return cmd
}

func (a *app) serve(ctx context.Context, memory bool, seeds []string) error {
	cfg, err := issuerConfig(a.v)
	if err != nil {
		return fmt.Errorf("issuer configuration: %w", err)
	}

	rdb, cleanup, err := a.openRedis(memory)
	if err != nil {
		return err
	}
	defer cleanup()

	store, err := a.newStore(rdb)
	if err != nil {
		return err
	}
	for _, raw := range seeds {
		username, pw, rec, err := parseSeed(raw)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, username, pw, rec); err != nil {
			return fmt.Errorf("seeding %s: %w", username, err)
		}
	}

	builder := goIssuer.New().
		WithConfig(cfg).
		WithVerifier(store).
		WithLogger(a.logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(goIssuer.NewJSONWriterSink(os.Stdout))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer engine.Close()

	handler := httpapi.NewHandler(engine, a.logger,
		httpapi.WithHealthCheck(store),
		httpapi.WithMetricsHandler(prometheus.NewExporter(engine).Handler()),
		httpapi.WithTrustedProxy(a.v.GetBool(keyTrustProxy)),
	)

	server := &http.Server{
		Addr:              a.v.GetString(keyHTTPAddr),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().
			Str("addr", server.Addr).
			Int64("expires_in", engine.ExpiresInSeconds()).
			Stringer("policy", cfg.MissingRecordPolicy).
			Msg("serving")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (a *app) openRedis(memory bool) (redis.UniversalClient, func(), error) {
	if !memory {
		rdb := redis.NewClient(redisOptions(a.v))
		return rdb, func() { _ = rdb.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("starting in-memory redis: %w", err)
	}
	a.logger.Warn().Str("addr", mr.Addr()).Msg("using in-memory redis; users are lost on exit")
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}, nil
}

func (a *app) newStore(rdb redis.UniversalClient) (*credstore.Store, error) {
	hasher, err := password.NewHasher(password.DefaultConfig())
	if err != nil {
		return nil, err
	}
	return credstore.New(rdb, credstore.Options{
		Prefix:            a.v.GetString(keyRedisPrefix),
		Hasher:            hasher,
		MaxFailedAttempts: a.v.GetInt(keyMaxFailed),
		FailureWindow:     a.v.GetDuration(keyFailWindow),
		Logger:            a.logger,
	})
}

// parseSeed reads username:password[:email:primaryID:groupID:roleID].
func parseSeed(raw string) (string, string, goIssuer.IdentityRecord, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 2 && len(parts) != 6 {
		return "", "", goIssuer.IdentityRecord{}, fmt.Errorf("invalid seed %q: want username:password[:email:primaryID:groupID:roleID]", raw)
	}

	rec := goIssuer.IdentityRecord{PrimaryID: -1, PrimaryGroupID: -1, RoleID: -1}
	if len(parts) == 6 {
		rec.Email = parts[2]
		ids := []*int64{&rec.PrimaryID, &rec.PrimaryGroupID, &rec.RoleID}
		for i, dst := range ids {
			n, err := strconv.ParseInt(parts[3+i], 10, 64)
			if err != nil {
				return "", "", goIssuer.IdentityRecord{}, fmt.Errorf("invalid seed %q: %w", raw, err)
			}
			*dst = n
		}
	}
	if parts[0] == "" {
		return "", "", goIssuer.IdentityRecord{}, fmt.Errorf("invalid seed %q: empty username", raw)
	}
	return parts[0], parts[1], rec, nil
}
