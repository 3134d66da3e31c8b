package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentdesk/internal/app/middleware"
)

type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration
}

func (s IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	q := s.DB.WithContext(ctx).Where("key = ?", key)
	if s.TTL > 0 {
		q = q.Where("created_at > ?", time.Now().UTC().Add(-s.TTL))
	}
	var m idempotencyModel
	if err := q.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: m.Key, Fingerprint: m.Fingerprint, Payload: m.Payload, OccurredAt: m.OccurredAt.UTC()}, true, nil
}

func (s IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	m := idempotencyModel{Key: rec.Key, Fingerprint: rec.Fingerprint, Payload: rec.Payload, OccurredAt: rec.OccurredAt, CreatedAt: time.Now().UTC()}
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// Purge deletes records past the TTL.
func (s IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	if s.TTL <= 0 {
		return 0, nil
	}
	res := s.DB.WithContext(ctx).Where("created_at <= ?", time.Now().UTC().Add(-s.TTL)).Delete(&idempotencyModel{})
	return res.RowsAffected, res.Error
}

var _ middleware.IdempotencyStore = IdempotencyStore{}
