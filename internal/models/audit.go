// internal/models/audit.go
package models

// AuditKind names the bid-service notification.
type AuditKind string

const (
	AuditRoundStarted AuditKind = "round_started"
	AuditBidPlaced    AuditKind = "bid_placed"
	AuditRoundClosed  AuditKind = "round_closed"
)

// AuditRecord is sent to the bid service for every round start, accepted bid and round close.
type AuditRecord struct {
	Kind         AuditKind `json:"kind"`
	Lobby        string    `json:"lobby"`
	Round        int       `json:"round"`
	ContainerID  string    `json:"container_id"`
	Nickname     string    `json:"nickname,omitempty"`
	Amount       int       `json:"amount,omitempty"`
	InitialValue int       `json:"initial_value,omitempty"`
	RealValue    int       `json:"real_value,omitempty"`
	Timestamp    int64     `json:"timestamp"`
}
