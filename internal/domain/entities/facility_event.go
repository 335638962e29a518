package entities

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// FacilityEventType represents the type of facility event
type FacilityEventType string

const (
	FacilityEventTypeImported FacilityEventType = "facility_imported"
	FacilityEventTypeSynced   FacilityEventType = "facility_synced"
	FacilityEventTypePurged   FacilityEventType = "facilities_purged"
)

// FacilityEvent is published after the import writes to the directory
type FacilityEvent struct {
	ID            string                 `json:"id"`
	FacilityID    string                 `json:"facility_id,omitempty"`
	EventType     FacilityEventType      `json:"event_type"`
	Timestamp     time.Time              `json:"timestamp"`
	Location      *Location              `json:"location,omitempty"`
	ChangedFields map[string]interface{} `json:"changed_fields,omitempty"`
}

// NewFacilityEvent creates a new facility event
func NewFacilityEvent(facilityID int64, eventType FacilityEventType, location *Location, changedFields map[string]interface{}) *FacilityEvent {
	e := &FacilityEvent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		Timestamp:     time.Now().UTC(),
		Location:      copyLocation(location),
		ChangedFields: changedFields,
	}
	if facilityID > 0 {
		e.FacilityID = strconv.FormatInt(facilityID, 10)
	}
	return e
}
