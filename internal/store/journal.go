package store

import (
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// WriteRecord is one journaled tree write (PostgreSQL). The journal is
// append-only; replaying records in id order reconstructs the tree.
type WriteRecord struct {
	ID    uint   `gorm:"primaryKey"`
	Path  string `gorm:"size:512;index"`
	Value string // JSON-encoded node value, "null" for deletes
}

// GormJournal implements Journal on top of a gorm connection.
type GormJournal struct {
	db *gorm.DB
}

// NewGormJournal creates a new GormJournal.
func NewGormJournal(db *gorm.DB) *GormJournal {
	return &GormJournal{db: db}
}

// Append records a committed write.
func (j *GormJournal) Append(path string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding journal value: %w", err)
	}
	return j.db.Create(&WriteRecord{Path: path, Value: string(raw)}).Error
}

// Replay feeds every journaled write to apply, oldest first.
func (j *GormJournal) Replay(apply func(path string, value any) error) error {
	var records []WriteRecord
	result := j.db.Order("id").FindInBatches(&records, 500, func(tx *gorm.DB, batch int) error {
		for _, rec := range records {
			var value any
			if err := json.Unmarshal([]byte(rec.Value), &value); err != nil {
				return fmt.Errorf("decoding journal record %d: %w", rec.ID, err)
			}
			if err := apply(rec.Path, value); err != nil {
				return err
			}
		}
		return nil
	})
	return result.Error
}
