package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a ledger event carried on the bus.
type EventType string

const (
	// EventFinanceRecorded is published after a payment entry is created or updated.
	EventFinanceRecorded EventType = "finance.recorded"
	// EventRestoreCompleted is published after an archive restore commits.
	EventRestoreCompleted EventType = "restore.completed"
)

// LedgerEvent is a lightweight notification. Consumers re-read state from the
// database; the event only says which tenant (and member) changed.
type LedgerEvent struct {
	Type          EventType      `json:"type"`
	TenantID      string         `json:"tenantId"`
	MemberID      string         `json:"memberId,omitempty"`
	RecordID      string         `json:"recordId,omitempty"`
	StructureType string         `json:"structureType,omitempty"`
	Inserted      map[string]int `json:"inserted,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

func NewFinanceRecordedEvent(tenantID, memberID, recordID, structureType string) *LedgerEvent {
	return &LedgerEvent{
		Type:          EventFinanceRecorded,
		TenantID:      tenantID,
		MemberID:      memberID,
		RecordID:      recordID,
		StructureType: structureType,
		Timestamp:     time.Now(),
	}
}

func NewRestoreCompletedEvent(tenantID string, inserted map[string]int) *LedgerEvent {
	return &LedgerEvent{
		Type:      EventRestoreCompleted,
		TenantID:  tenantID,
		Inserted:  inserted,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown types or a missing tenant.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var e LedgerEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case EventFinanceRecorded, EventRestoreCompleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.TenantID == "" {
		return nil, fmt.Errorf("event %s has no tenant", e.Type)
	}
	return &e, nil
}
