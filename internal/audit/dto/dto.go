package dto

type LogInput struct {
	ActorID    string
	EntityType string
	EntityID   string
	Action     string
	Before     map[string]any
	After      map[string]any
}

type ChainHead struct {
	LastSeq  int64  `db:"last_seq"`
	LastHash string `db:"last_hash"`
}

// ChainRange selects events by sequence number, both ends inclusive.
// A zero bound leaves that side open.
type ChainRange struct {
	FromSeq int64
	ToSeq   int64
}

type RecordVerification struct {
	EventID string `json:"event_id"`
	Seq     int64  `json:"seq"`
	Valid   bool   `json:"valid"`
}

type ChainError struct {
	Seq     int64  `json:"seq"`
	EventID string `json:"event_id"`
	Reason  string `json:"reason"`
}

type ChainReport struct {
	Valid           bool         `json:"valid"`
	TotalRecords    int          `json:"total_records"`
	VerifiedRecords int          `json:"verified_records"`
	Errors          []ChainError `json:"errors"`
}
