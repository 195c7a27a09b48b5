package entity

import "time"

const (
	OperationCreate        = "create"
	OperationUpdate        = "update"
	OperationDelete        = "delete"
	OperationRegenerateKey = "regenerate_key"
)

// ReconciliationMarker is written before a gateway mutation and removed once
// the matching local write commits. A marker that outlives its operation marks
// a subscription whose local record may lag behind the gateway.
type ReconciliationMarker struct {
	ID             string
	SubscriptionID string
	Operation      string
	Detail         string
	CreatedAt      time.Time
	ReportedAt     *time.Time
}
