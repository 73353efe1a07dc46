package storage

import (
	"context"
	"time"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/activitymap"
	"github.com/uptrace/bun"
)

// ActivityModel is one normalized activity entry.
type ActivityModel struct {
	bun.BaseModel `bun:"table:activity_log"`

	ID         int64          `bun:"id,pk,autoincrement"`
	ActorID    string         `bun:"actor_id,notnull"`
	Verb       string         `bun:"verb,notnull"`
	ObjectType string         `bun:"object_type"`
	ObjectID   string         `bun:"object_id"`
	Channel    string         `bun:"channel"`
	Metadata   map[string]any `bun:"metadata,type:json"`
	OccurredAt time.Time      `bun:"occurred_at,notnull"`
}

var _ auth.ActivitySink = &ActivityLog{}

// ActivityLog records activity events in the activity_log table. It shares
// the database with Store.
type ActivityLog struct {
	db     *bun.DB
	opts   []activitymap.Option
	logger auth.Logger
}

// NewActivityLog returns a sink writing to the store's database.
func NewActivityLog(store *Store, opts ...activitymap.Option) *ActivityLog {
	return &ActivityLog{db: store.DB(), opts: opts, logger: store.logger}
}

// Record implements auth.ActivitySink.
func (l *ActivityLog) Record(ctx context.Context, event auth.ActivityEvent) error {
	n := activitymap.Normalize(event, l.opts...)
	model := &ActivityModel{
		ActorID:    n.ActorID,
		Verb:       n.Verb,
		ObjectType: n.ObjectType,
		ObjectID:   n.ObjectID,
		Channel:    n.Channel,
		Metadata:   n.Metadata,
		OccurredAt: n.OccurredAt.UTC(),
	}

	if _, err := l.db.NewInsert().Model(model).Exec(ctx); err != nil {
		l.logger.Error("activity log insert %s failed: %v", n.Verb, err)
		return err
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *ActivityLog) Recent(ctx context.Context, limit int) ([]activitymap.Normalized, error) {
	if limit <= 0 {
		limit = 50
	}

	var models []ActivityModel
	err := l.db.NewSelect().
		Model(&models).
		Order("occurred_at DESC", "id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]activitymap.Normalized, 0, len(models))
	for _, m := range models {
		out = append(out, activitymap.Normalized{
			ActorID:    m.ActorID,
			Verb:       m.Verb,
			ObjectType: m.ObjectType,
			ObjectID:   m.ObjectID,
			Channel:    m.Channel,
			Metadata:   m.Metadata,
			OccurredAt: m.OccurredAt,
		})
	}
	return out, nil
}
