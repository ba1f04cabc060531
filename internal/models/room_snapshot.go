package models

import (
	"time"

	"github.com/segmentio/ksuid"
	"gorm.io/gorm"
)

// RoomSnapshot is the hub-side archive row holding the latest document
// state observed for a room. It is operational visibility, not a source of
// truth: the owner's local cache remains authoritative for rejoin.
type RoomSnapshot struct {
	ID        string    `gorm:"type:varchar(27);primaryKey" json:"id"`
	RoomID    string    `gorm:"type:varchar(16);not null;uniqueIndex" json:"room_id"`
	Code      string    `gorm:"type:text;not null" json:"code"`
	Language  string    `gorm:"type:varchar(16);not null" json:"language"`
	UpdatedBy string    `gorm:"type:varchar(64)" json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a KSUID primary key.
func (r *RoomSnapshot) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = ksuid.New().String()
	}
	return nil
}

// TableName override
func (RoomSnapshot) TableName() string {
	return "room_snapshots"
}
