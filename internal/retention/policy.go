// Package retention describes how long backups of each cadence are kept and
// renders that as bucket lifecycle configuration. Expiry itself is enforced by
// the storage service, never by this code.
package retention

import (
	"fmt"
	"strings"

	"github.com/Chapsvision-dev/repo-backup-provisioner/internal/partition"
)

// StorageClass is a cost/latency tier for durable object storage.
type StorageClass string

const (
	Standard           StorageClass = "STANDARD"
	IntelligentTiering StorageClass = "INTELLIGENT_TIERING"
	OneZoneIA          StorageClass = "ONEZONE_IA"
	StandardIA         StorageClass = "STANDARD_IA"
	Glacier            StorageClass = "GLACIER"
	GlacierIR          StorageClass = "GLACIER_IR"
	DeepArchive        StorageClass = "DEEP_ARCHIVE"
)

const (
	DefaultStorageClass = GlacierIR
	DefaultDailyDays    = 30
	DefaultWeeklyDays   = 365
)

// StorageClasses lists every accepted storage class.
var StorageClasses = []StorageClass{
	Standard, IntelligentTiering, OneZoneIA, StandardIA, Glacier, GlacierIR, DeepArchive,
}

// ParseStorageClass accepts a storage class name in any case.
func ParseStorageClass(s string) (StorageClass, error) {
	want := StorageClass(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range StorageClasses {
		if c == want {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown storage class %q", s)
}

// dayBounds are the accepted RetentionDays ranges per cadence.
var dayBounds = map[partition.Cadence][2]int{
	partition.Daily:  {1, 365},
	partition.Weekly: {1, 3650},
}

// Policy expires objects under a cadence's key prefix after RetentionDays.
type Policy struct {
	Cadence       partition.Cadence `yaml:"cadence"`
	RetentionDays int               `yaml:"retentionDays"`
	StorageClass  StorageClass      `yaml:"storageClass"`
}

// Defaults returns the daily and weekly policies with default settings.
func Defaults() []Policy {
	return []Policy{
		{Cadence: partition.Daily, RetentionDays: DefaultDailyDays, StorageClass: DefaultStorageClass},
		{Cadence: partition.Weekly, RetentionDays: DefaultWeeklyDays, StorageClass: DefaultStorageClass},
	}
}

// Validate checks the cadence, the day bounds and the storage class.
func (p Policy) Validate() error {
	b, ok := dayBounds[p.Cadence]
	if !ok {
		return fmt.Errorf("retention: unknown cadence %q", p.Cadence)
	}
	if p.RetentionDays < b[0] || p.RetentionDays > b[1] {
		return fmt.Errorf("retention: %s retention days %d out of range [%d, %d]", p.Cadence, p.RetentionDays, b[0], b[1])
	}
	if _, err := ParseStorageClass(string(p.StorageClass)); err != nil {
		return fmt.Errorf("retention: %w", err)
	}
	return nil
}

// Prefix is the key prefix the policy governs.
func (p Policy) Prefix() string { return p.Cadence.Prefix() }

// RuleID is the lifecycle rule identifier for the policy.
func (p Policy) RuleID() string { return string(p.Cadence) + "-retention" }
