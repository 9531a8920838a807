package subscriptions

import "time"

// Status is the persisted lifecycle state
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusCanceled Status = "CANCELED"
)

// ComputedStatus is derived on every read and never stored
type ComputedStatus string

const (
	ComputedActive   ComputedStatus = "ACTIVE"
	ComputedOverdue  ComputedStatus = "OVERDUE"
	ComputedCanceled ComputedStatus = "CANCELED"
)

// DeriveStatus computes the read-time status. A subscription whose period ends
// exactly at now is still ACTIVE.
func DeriveStatus(status Status, periodEnd, now time.Time) ComputedStatus {
	if status == StatusCanceled {
		return ComputedCanceled
	}
	if !periodEnd.Before(now) {
		return ComputedActive
	}
	return ComputedOverdue
}
