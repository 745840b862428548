package domain

import "strings"

// SyncRule is the training synchronization policy.
type SyncRule string

const (
	// EASGD is asynchronous elastic averaging; every process reports.
	EASGD SyncRule = "EASGD"
	// BSP is bulk synchronous lock-step; only rank 0 reports.
	BSP SyncRule = "BSP"
)

// ParseSyncRule accepts the rule name case-insensitively.
func ParseSyncRule(s string) (SyncRule, error) {
	switch SyncRule(strings.ToUpper(strings.TrimSpace(s))) {
	case EASGD:
		return EASGD, nil
	case BSP:
		return BSP, nil
	case "":
		return "", ErrMissingKey.WithDetails("sync_rule")
	default:
		return "", ErrInvalidSyncRule.Detailf("%q", s)
	}
}

// Verbose reports whether the process at rank should report progress.
func (r SyncRule) Verbose(rank int) bool {
	if r == EASGD {
		return true
	}
	return rank == 0
}
