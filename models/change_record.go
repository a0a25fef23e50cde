package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Watched collections.
const (
	CollectionLineItems        = "line_items"
	CollectionAppointments     = "appointments"
	CollectionUnavailabilities = "unavailabilities"
)

const (
	OperationInsert = "insert"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// ChangeRecord is one entry of the change log read by the realtime relay.
// ID is monotonically increasing and doubles as the resume token.
type ChangeRecord struct {
	ID            uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Collection    string         `gorm:"not null;index;size:40" json:"collection"`
	OperationType string         `gorm:"not null;size:10" json:"operation_type"`
	DocumentKey   string         `gorm:"not null;size:80" json:"document_key"`
	BranchID      string         `gorm:"size:50" json:"branch_id"`
	FullDocument  datatypes.JSON `json:"full_document"`
	ClusterTime   time.Time      `gorm:"not null;index" json:"cluster_time"`
}

// TableName specifies the table name for the ChangeRecord model
func (ChangeRecord) TableName() string {
	return "change_events"
}

// recordChange appends a change record inside the caller's transaction. Writes
// that carry no document key (bulk updates through an empty model) are skipped.
func recordChange(tx *gorm.DB, collection, operation, key, branchID string, doc any) error {
	if key == "" {
		return nil
	}

	var payload datatypes.JSON
	if doc != nil {
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode %s change: %w", collection, err)
		}
		payload = raw
	}

	record := ChangeRecord{
		Collection:    collection,
		OperationType: operation,
		DocumentKey:   key,
		BranchID:      branchID,
		FullDocument:  payload,
		ClusterTime:   time.Now().UTC(),
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record %s change: %w", collection, err)
	}
	return nil
}
