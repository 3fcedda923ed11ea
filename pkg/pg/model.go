package pg

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is the base of every versioned table. Version is bumped by each
// guarded write and compared against the value read in the same unit of
// work.
type Model struct {
	ID        string    `gorm:"primaryKey;type:varchar(64);column:id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
	Version   int64     `gorm:"column:version;not null;default:1"`
}

func (m *Model) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Version == 0 {
		m.Version = 1
	}
	return nil
}
