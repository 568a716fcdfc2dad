package pageview

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"

	"github.com/CallistoLabsNYC/rp-transform-study/pkg/exception"
)

type pageViewRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	PageName  string    `gorm:"column:page_name;not null"`
	UserID    int32     `gorm:"column:user_id;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;not null;autoCreateTime:false"`
}

func (pageViewRow) TableName() string {
	return "page_view"
}

// Store persists page views in postgres.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, exception.ErrNilInstance
	}
	return &Store{db: db}, nil
}

// Migrate creates the page_view table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&pageViewRow{})
}

func (s *Store) Insert(ctx context.Context, v PageView) error {
	row := pageViewRow{PageName: v.PageName, UserID: v.UserID, CreatedAt: v.CreatedAt.UTC()}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "insert page view").With("user_id", v.UserID)
	}
	return nil
}
