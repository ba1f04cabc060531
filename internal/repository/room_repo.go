package repository

import (
	"context"
	"errors"
	"fmt"

	"pairpad/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomArchive stores the latest observed document state per room. One row
// per room, overwritten on every state-bearing broadcast the hub relays.
type RoomArchive struct {
	db *gorm.DB
}

// NewRoomArchive creates a room archive over db.
func NewRoomArchive(db *gorm.DB) *RoomArchive {
	return &RoomArchive{db: db}
}

// Upsert writes the latest snapshot for a room, inserting on first sight.
func (r *RoomArchive) Upsert(ctx context.Context, roomID, code, language, updatedBy string) error {
	snapshot := &models.RoomSnapshot{
		RoomID:    roomID,
		Code:      code,
		Language:  language,
		UpdatedBy: updatedBy,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"code", "language", "updated_by", "updated_at"}),
		}).
		Create(snapshot).Error
	if err != nil {
		return fmt.Errorf("failed to archive room %s: %w", roomID, err)
	}
	return nil
}

// Get returns the archived snapshot for a room, or (nil, nil) when the
// room has never been seen.
func (r *RoomArchive) Get(ctx context.Context, roomID string) (*models.RoomSnapshot, error) {
	var snapshot models.RoomSnapshot
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	return &snapshot, nil
}

// Delete drops a room's archived snapshot.
func (r *RoomArchive) Delete(ctx context.Context, roomID string) error {
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).Delete(&models.RoomSnapshot{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	return nil
}
