package credstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/claims"
	"github.com/MrEthical07/goIssuer/internal/rate"
	"github.com/MrEthical07/goIssuer/password"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	fieldPasswordHash   = "password_hash"
	fieldEmail          = "email"
	fieldPrimaryID      = "primary_id"
	fieldPrimaryGroupID = "primary_group_id"
	fieldRoleID         = "role_id"
)

var (
	// ErrEmptyUsername is returned by Put and Delete for an empty username.
	ErrEmptyUsername = errors.New("credstore: username is required")
	// ErrCorruptRecord is returned when a stored user hash cannot be decoded.
	ErrCorruptRecord = errors.New("credstore: corrupt user record")
	// ErrHasherRequired is returned by New without a password hasher.
	ErrHasherRequired = errors.New("credstore: password hasher required")
)

// Options configures a Store.
type Options struct {
	// Prefix namespaces every key; default "tokend".
	Prefix string
	Hasher *password.Hasher
	// MaxFailedAttempts per username within FailureWindow before lookups are refused. Zero disables throttling.
	MaxFailedAttempts int
	FailureWindow     time.Duration
	Logger            zerolog.Logger
}

// Store is a Redis-backed goIssuer.CredentialVerifier. Each user is one hash at
// <prefix>:user:<username>.
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	hasher  *password.Hasher
	limiter *rate.Limiter
	logger  zerolog.Logger

	// dummyHash is verified on a miss so absent users cost the same as wrong passwords.
	dummyHash string
}

var _ goIssuer.CredentialVerifier = (*Store)(nil)

// New creates a Store over rdb.
func New(rdb redis.UniversalClient, opts Options) (*Store, error) {
	if opts.Hasher == nil {
		return nil, ErrHasherRequired
	}
	if opts.Prefix == "" {
		opts.Prefix = "tokend"
	}

	dummy, err := opts.Hasher.Hash("credstore-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("credstore: prepare dummy hash: %w", err)
	}

	return &Store{
		redis:  rdb,
		prefix: opts.Prefix,
		hasher: opts.Hasher,
		limiter: rate.New(rdb, rate.Config{
			Prefix:      opts.Prefix + ":failed",
			MaxAttempts: opts.MaxFailedAttempts,
			Window:      opts.FailureWindow,
		}),
		logger:    opts.Logger.With().Str("component", "credstore").Logger(),
		dummyHash: dummy,
	}, nil
}

func (s *Store) userKey(username string) string {
	return s.prefix + ":user:" + username
}

// Lookup resolves creds to an identity. It returns (nil, nil) when the user is
// unknown, the password does not match or the username is throttled, and an
// error only when Redis or the stored record is unusable.
func (s *Store) Lookup(ctx context.Context, creds goIssuer.Credentials) (*goIssuer.IdentityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.limiter.Allow(ctx, creds.Username); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			s.logger.Debug().Msg("lookup throttled")
			return nil, nil
		}
		return nil, fmt.Errorf("credstore: throttle check: %w", err)
	}

	fields, err := s.redis.HGetAll(ctx, s.userKey(creds.Username)).Result()
	if err != nil {
		return nil, fmt.Errorf("credstore: read user: %w", err)
	}

	if len(fields) == 0 {
		_, _ = s.hasher.Verify(creds.Password, s.dummyHash)
		return nil, s.recordFailure(ctx, creds.Username)
	}

	stored := fields[fieldPasswordHash]
	ok, err := s.hasher.Verify(creds.Password, stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if !ok {
		return nil, s.recordFailure(ctx, creds.Username)
	}

	record, err := decodeRecord(fields)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Reset(ctx, creds.Username); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset attempt counter")
	}
	s.upgradeHash(ctx, creds, stored)

	return record, nil
}

func (s *Store) recordFailure(ctx context.Context, username string) error {
	if err := s.limiter.Fail(ctx, username); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		return fmt.Errorf("credstore: record failure: %w", err)
	}
	return nil
}

// upgradeHash rewrites a hash produced with weaker parameters. Failures are logged only.
func (s *Store) upgradeHash(ctx context.Context, creds goIssuer.Credentials, stored string) {
	need, err := s.hasher.NeedsRehash(stored)
	if err != nil || !need {
		return
	}

	upgraded, err := s.hasher.Hash(creds.Password)
	if err != nil {
		s.logger.Warn().Err(err).Msg("password rehash failed")
		return
	}
	if err := s.redis.HSet(ctx, s.userKey(creds.Username), fieldPasswordHash, upgraded).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("password rehash write failed")
	}
}

// Put creates or replaces a user. The password is stored as an argon2id hash.
func (s *Store) Put(ctx context.Context, username, plaintext string, record goIssuer.IdentityRecord) error {
	if username == "" {
		return ErrEmptyUsername
	}

	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return err
	}

	key := s.userKey(username)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			fieldPasswordHash:   hash,
			fieldEmail:          record.Email,
			fieldPrimaryID:      strconv.FormatInt(record.PrimaryID, 10),
			fieldPrimaryGroupID: strconv.FormatInt(record.PrimaryGroupID, 10),
			fieldRoleID:         strconv.FormatInt(record.RoleID, 10),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("credstore: write user: %w", err)
	}
	return nil
}

// Delete removes a user. Deleting an absent user is not an error.
func (s *Store) Delete(ctx context.Context, username string) error {
	if username == "" {
		return ErrEmptyUsername
	}
	if err := s.redis.Del(ctx, s.userKey(username)).Err(); err != nil {
		return fmt.Errorf("credstore: delete user: %w", err)
	}
	return nil
}

// Ping checks Redis reachability and reports its round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("credstore: ping: %w", err)
	}
	return time.Since(start), nil
}

// decodeRecord maps hash fields to an identity. Absent id fields are unset.
func decodeRecord(fields map[string]string) (*goIssuer.IdentityRecord, error) {
	record := claims.UnsetIdentity()
	record.Email = fields[fieldEmail]

	targets := []struct {
		field string
		dst   *int64
	}{
		{fieldPrimaryID, &record.PrimaryID},
		{fieldPrimaryGroupID, &record.PrimaryGroupID},
		{fieldRoleID, &record.RoleID},
	}
	for _, t := range targets {
		raw, ok := fields[t.field]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %s", ErrCorruptRecord, t.field)
		}
		*t.dst = v
	}
	return &record, nil
}
