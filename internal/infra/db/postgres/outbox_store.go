package postgres

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	appoutbox "rentdesk/internal/app/outbox"
	infraoutbox "rentdesk/internal/infra/outbox"
)

type outboxWriter struct {
	tx *gorm.DB
}

func (w outboxWriter) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return w.tx.WithContext(ctx).Create(&outboxModel{
		ID:            record.ID,
		Name:          record.Name,
		Payload:       record.Payload,
		OccurredAt:    record.OccurredAt,
		Aggregate:     record.Aggregate,
		Headers:       datatypes.JSON(headers),
		State:         infraoutbox.StateNew,
		NextAttemptAt: now,
		CreatedAt:     now,
	}).Error
}

// OutboxQueue serves committed records to the relay. Claims use SKIP LOCKED so
// several workers can poll the same table.
type OutboxQueue struct {
	DB *gorm.DB
}

const claimSQL = `
UPDATE outbox_events SET state = ?, claimed_by = ?, claimed_at = ?
WHERE id IN (
	SELECT id FROM outbox_events
	WHERE (state IN (?, ?) AND next_attempt_at <= ?) OR (state = ? AND claimed_at <= ?)
	ORDER BY created_at
	LIMIT ?
	FOR UPDATE SKIP LOCKED
)
RETURNING *`

func (q OutboxQueue) Claim(ctx context.Context, workerID string, limit int) ([]infraoutbox.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	now := time.Now().UTC()
	var rows []outboxModel
	err := q.DB.WithContext(ctx).Raw(claimSQL,
		infraoutbox.StateClaimed, workerID, now,
		infraoutbox.StateNew, infraoutbox.StateFailed, now,
		infraoutbox.StateClaimed, now.Add(-infraoutbox.ClaimLease),
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]infraoutbox.Message, 0, len(rows))
	for _, m := range rows {
		var headers map[string]string
		if len(m.Headers) > 0 {
			if err := json.Unmarshal(m.Headers, &headers); err != nil {
				return nil, err
			}
		}
		out = append(out, infraoutbox.Message{
			ID:         m.ID,
			Name:       m.Name,
			Payload:    m.Payload,
			OccurredAt: m.OccurredAt,
			Aggregate:  m.Aggregate,
			Headers:    headers,
			Attempts:   m.Attempts,
		})
	}
	return out, nil
}

func (q OutboxQueue) MarkSent(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return q.DB.WithContext(ctx).Model(&outboxModel{}).Where("id = ?", id).
		Updates(map[string]any{"state": infraoutbox.StateSent, "sent_at": now}).Error
}

func (q OutboxQueue) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return q.DB.WithContext(ctx).Model(&outboxModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"state":           infraoutbox.StateFailed,
			"next_attempt_at": next,
			"last_error":      errMsg,
			"attempts":        gorm.Expr("attempts + 1"),
		}).Error
}

var (
	_ appoutbox.Outbox  = outboxWriter{}
	_ infraoutbox.Queue = OutboxQueue{}
)
