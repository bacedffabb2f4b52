// Package cache implements the volatile side of the cache-aside pattern.
//
// The durable store is always authoritative. Entries written here carry a
// TTL and may be dropped at any time; readers fall back to the durable
// store on a miss and repopulate.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is the narrow contract services depend on. Both the Redis
// implementation and the in-memory fake satisfy it.
type Store interface {
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key beginning with prefix. Used for
	// write-time invalidation of key namespaces that are not addressable
	// by a single derived key (period queries with page/limit).
	DeletePrefix(ctx context.Context, prefix string) error
	// RandomToken returns a cryptographically random alphanumeric string.
	RandomToken(length int) (string, error)
}

// TTLs per entry type. Query snapshots live for hours and self-heal on the
// next write; single-use tokens live for minutes.
const (
	WorkdayTTL       = time.Hour
	UpdatesTTL       = time.Hour
	VerifyEmailTTL   = 30 * time.Minute
	ResetPasswordTTL = 15 * time.Minute
)

func VerifyEmailKey(driverID uuid.UUID) string {
	return fmt.Sprintf("driver:%s:verify_email", driverID)
}

func ResetPasswordKey(driverID uuid.UUID) string {
	return fmt.Sprintf("driver:%s:reset_password", driverID)
}

func WorkdayMonthKey(driverID uuid.UUID, month, year int) string {
	return fmt.Sprintf("driver:%s:workdays:month:%04d-%02d", driverID, year, month)
}

func WorkdayPeriodKey(driverID uuid.UUID, from, to time.Time, page, limit int) string {
	return fmt.Sprintf("driver:%s:workdays:period:%s:%s:%d:%d",
		driverID, from.Format("2006-01-02"), to.Format("2006-01-02"), page, limit)
}

// WorkdayPrefix covers every workday query snapshot for the driver.
func WorkdayPrefix(driverID uuid.UUID) string {
	return fmt.Sprintf("driver:%s:workdays:", driverID)
}

func UpdatesKey(version string, page, limit int) string {
	return fmt.Sprintf("updates:%s:%d:%d", version, page, limit)
}
