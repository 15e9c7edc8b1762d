package domain

import (
	"strings"

	orderdomain "github.com/dmehra2102/storefront-reconciler/internal/order/domain"
)

// DefaultStatusTable maps gateway vocabulary onto local statuses.
var DefaultStatusTable = map[string]Status{
	"approved":     StatusApproved,
	"pending":      StatusPending,
	"rejected":     StatusRejected,
	"refunded":     StatusRefunded,
	"cancelled":    StatusCancelled,
	"in_process":   StatusPending,
	"in_mediation": StatusPending,
	"charged_back": StatusRejected,
}

// Normalizer folds gateway statuses into the local taxonomy. Strings missing
// from the table become pending: an unknown status is never approved.
type Normalizer struct {
	table map[string]Status
}

// NewNormalizer starts from DefaultStatusTable and layers extra on top.
// Entries in extra that point at an unknown local status are ignored.
func NewNormalizer(extra map[string]Status) Normalizer {
	table := make(map[string]Status, len(DefaultStatusTable)+len(extra))
	for k, v := range DefaultStatusTable {
		table[k] = v
	}
	for k, v := range extra {
		if v.Valid() {
			table[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return Normalizer{table: table}
}

func (n Normalizer) Normalize(raw string) Status {
	table := n.table
	if table == nil {
		table = DefaultStatusTable
	}
	if st, ok := table[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return st
	}
	return StatusPending
}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// DeriveOrderStatus ignores the order's current status.
func DeriveOrderStatus(s Status) orderdomain.OrderStatus {
	switch s {
	case StatusApproved:
		return orderdomain.StatusProcessing
	case StatusRejected, StatusCancelled:
		return orderdomain.StatusCancelled
	default:
		return orderdomain.StatusPending
	}
}
