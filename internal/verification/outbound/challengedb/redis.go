// Package challengedb stores outstanding one-time code challenges in Redis.
//
// Each challenge lives under a per-email key with a TTL matching the code
// expiry, so the store reclaims abandoned challenges on its own even when
// the absolute expiry check never runs.
package challengedb

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/otpgate/otpgate/internal/pkg/goerror"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/verification/entity"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const keyPrefix = "challenge:"

const (
	fieldCodeHash  = "code_hash"
	fieldExpiresAt = "expires_at"
)

type Redis struct {
	client *redis.Client
	ins    instrument.Instrumentation
}

func NewRedis(client *redis.Client, ins instrument.Instrumentation) *Redis {
	return &Redis{client: client, ins: ins}
}

func (s *Redis) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("verification.outbound.challengedb").Start(ctx, name)
}

func (s *Redis) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// PutChallenge stores the challenge, replacing any outstanding one for
// the same email, and arms the key TTL as a backstop for the absolute
// expiry carried in the payload.
func (s *Redis) PutChallenge(ctx context.Context, ch entity.Challenge, ttl time.Duration) (err error) {
	ctx, span := s.startSpan(ctx, "PutChallenge")
	defer func() { s.endSpan(span, err) }()

	key := keyPrefix + ch.Email

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCodeHash:  ch.CodeHash,
		fieldExpiresAt: strconv.FormatInt(ch.ExpiresAt.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// GetChallenge returns the outstanding challenge for the email, or
// goerror.ErrNotFound when none exists.
func (s *Redis) GetChallenge(ctx context.Context, email string) (ch *entity.Challenge, err error) {
	ctx, span := s.startSpan(ctx, "GetChallenge")
	defer func() { s.endSpan(span, err) }()

	fields, err := s.client.HGetAll(ctx, keyPrefix+email).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, goerror.ErrNotFound
	}

	expiresAt, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, err
	}

	return &entity.Challenge{
		Email:     email,
		CodeHash:  fields[fieldCodeHash],
		ExpiresAt: time.Unix(0, expiresAt),
	}, nil
}

// DeleteChallenge removes the challenge for the email. Deleting a missing
// key is not an error.
func (s *Redis) DeleteChallenge(ctx context.Context, email string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteChallenge")
	defer func() { s.endSpan(span, err) }()

	return s.client.Del(ctx, keyPrefix+email).Err()
}
