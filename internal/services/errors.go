package services

import (
	"context"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrStoreUnavailable wraps every failure talking to the cache store,
	// including deadline expiry. It is never retried by the service.
	ErrStoreUnavailable = errors.New("cache service: store unavailable")
	// ErrInvalidKey rejects blank keys, keys over 256 characters and keys
	// holding control characters.
	ErrInvalidKey = errors.New("cache service: invalid key")
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint") ||
		strings.Contains(lower, "duplicate")
}

// storeFailureReason labels a store error for logs and metrics.
func storeFailureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case isUniqueConstraintError(err):
		return "conflict"
	default:
		return "error"
	}
}
