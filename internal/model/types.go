package model

import "time"

// Role identifies an account's access level.
type Role string

const (
	// RoleRescuer may view every hiker and manage accounts.
	RoleRescuer Role = "rescuer"
	// RoleViewer is bound to exactly one hiker and sees only that hiker.
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleRescuer || r == RoleViewer
}

// TelemetryRecord is a single stored reading for one hiker. Records are
// append-only: once written they are never updated or deleted.
type TelemetryRecord struct {
	ID          int64     `json:"id"`
	HikerID     string    `json:"id_pendaki"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Temperature *float64  `json:"suhu"`
	Humidity    *float64  `json:"kelembaban"`
	SOSActive   bool      `json:"sos"`
	ObservedAt  time.Time `json:"-"`
}

// Account is a dashboard login. BoundHikerID is meaningful only for viewers;
// it is stored empty for rescuers.
type Account struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	BoundHikerID string `json:"bound_hiker_id,omitempty"`
}

// Identity is the authenticated caller attached to a request after the auth
// guard has run.
type Identity struct {
	AccountID    int64
	Username     string
	Role         Role
	BoundHikerID string
}

// CanViewHiker reports whether the caller may read the given hiker's data.
func (id Identity) CanViewHiker(hikerID string) bool {
	if id.Role == RoleRescuer {
		return true
	}
	return id.Role == RoleViewer && id.BoundHikerID == hikerID
}

// IngestionError captures an inbound message that failed parsing or
// persistence, kept for operator inspection.
type IngestionError struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
	Error   string `json:"error"`
}
