package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/oshikatsu-collection/oshidata/internal/tmdb"
	"github.com/oshikatsu-collection/oshidata/internal/youtube"
)

const retryAttempts = 3

var retryDelay = 1 * time.Second

// performWithRetry runs op up to three times, one second apart. Errors that
// cannot get better on a retry (cancelled context, exhausted quota, 4xx) return at once.
func performWithRetry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var result T
	var err error
	for i := 0; i < retryAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
		result, err = op()
		if err == nil {
			return result, nil
		}
		if !retryable(err) {
			return result, err
		}
	}
	return result, err
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if youtube.IsQuotaExceeded(err) {
		return false
	}
	var ytErr *youtube.APIError
	if errors.As(err, &ytErr) {
		return ytErr.Status >= 500 || ytErr.Status == http.StatusTooManyRequests
	}
	var tmdbErr *tmdb.APIError
	if errors.As(err, &tmdbErr) {
		return tmdbErr.Status >= 500 || tmdbErr.Status == http.StatusTooManyRequests
	}
	return true
}
