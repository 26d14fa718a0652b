package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStorageUnavailable is surfaced once the retry budget for a transient
// storage failure is exhausted. Validation and not-found errors are never
// retried and never wrapped in it.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Retry policy for storage writes.
const (
	retryInitialInterval = 100 * time.Millisecond
	retryMaxInterval     = 2 * time.Second
	retryMaxAttempts     = 3
)

// Retry runs op, retrying transient storage failures with exponential
// backoff up to the bounded budget. Non-transient errors are returned
// unchanged on the first attempt; budget exhaustion is reported as
// ErrStorageUnavailable wrapping the last failure.
func Retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = 0

	var lastTransient error

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		lastTransient = err
		return err
	}

	err := backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, retryMaxAttempts), ctx))
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	if lastTransient != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, lastTransient)
	}
	return err
}

// Classify wraps transient failures in ErrStorageUnavailable and passes
// everything else through. Used on read paths that do not retry.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}

// IsTransient reports whether a storage error is worth retrying: network
// failures and the Postgres connection/resource/shutdown error classes.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08 connection exception, 53 insufficient resources,
		// 57 operator intervention (includes shutdown), 58 system error.
		for _, class := range []string{"08", "53", "57", "58"} {
			if strings.HasPrefix(pgErr.Code, class) {
				return true
			}
		}
	}
	return false
}
