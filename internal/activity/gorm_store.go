package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pcidesk/chat-presence/pkg/database"
)

// UserActivityModel is the GORM model for the user_activity table.
type UserActivityModel struct {
	UserID         string    `gorm:"primaryKey;type:varchar(64)"`
	LastActivityAt time.Time `gorm:"not null;index"`
	UpdatedAt      time.Time
}

func (UserActivityModel) TableName() string {
	return "user_activity"
}

// GormStore implements Store on a relational database. Concurrent reads for
// the same user are coalesced into one query.
type GormStore struct {
	db    *gorm.DB
	group singleflight.Group
}

var _ Store = (*GormStore)(nil)

// NewGormStore creates a new GORM-backed activity store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the user_activity table.
func (s *GormStore) Migrate() error {
	return database.AutoMigrate(s.db, &UserActivityModel{})
}

func (s *GormStore) LastActivity(ctx context.Context, userID string) (time.Time, error) {
	v, err, _ := s.group.Do(userID, func() (interface{}, error) {
		var model UserActivityModel
		err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("query user activity: %w", err)
		}
		return model.LastActivityAt, nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return v.(time.Time), nil
}

func (s *GormStore) Touch(ctx context.Context, userID string, at time.Time) error {
	model := UserActivityModel{
		UserID:         userID,
		LastActivityAt: at.UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_activity_at", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("upsert user activity: %w", err)
	}
	return nil
}
