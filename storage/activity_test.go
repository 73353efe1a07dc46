package storage_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-marketplace-auth"
	"github.com/goliatone/go-marketplace-auth/activitymap"
	"github.com/goliatone/go-marketplace-auth/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityLogRecordsNormalizedEvents(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	log := storage.NewActivityLog(store)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, log.Record(ctx, auth.ActivityEvent{
		EventType:  auth.ActivityEventLoginSuccess,
		Actor:      auth.ActorRef{ID: "u1", Type: "job_seeker"},
		UserID:     "u1",
		OccurredAt: base,
	}))
	require.NoError(t, log.Record(ctx, auth.ActivityEvent{
		EventType:  auth.ActivityEventApplicationStatusChanged,
		Actor:      auth.ActorRef{ID: "r1", Type: "recruiter"},
		UserID:     "u1",
		FromStatus: "applied",
		ToStatus:   "hired",
		Metadata:   map[string]any{"application_id": "app-9"},
		OccurredAt: base.Add(time.Minute),
	}))

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	latest := entries[0]
	assert.Equal(t, "r1", latest.ActorID)
	assert.Equal(t, string(auth.ActivityEventApplicationStatusChanged), latest.Verb)
	assert.Equal(t, activitymap.ObjectApplication, latest.ObjectType)
	assert.Equal(t, "app-9", latest.ObjectID)
	assert.Equal(t, "application", latest.Channel)
	assert.Equal(t, "hired", latest.Metadata[activitymap.MetadataKeyToStatus])
	assert.True(t, latest.OccurredAt.Equal(base.Add(time.Minute)))

	assert.Equal(t, "auth", entries[1].Channel)
	assert.Equal(t, activitymap.ObjectUser, entries[1].ObjectType)
	assert.Equal(t, "u1", entries[1].ObjectID)
}

func TestActivityLogRecentLimit(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	log := storage.NewActivityLog(store, activitymap.WithChannel("client"))

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Record(ctx, auth.ActivityEvent{
			EventType:  auth.ActivityEventLogout,
			UserID:     "u1",
			OccurredAt: time.Date(2026, 3, 1, 12, i, 0, 0, time.UTC),
		}))
	}

	entries, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "client", entries[0].Channel)
	assert.Equal(t, 2, entries[0].OccurredAt.Minute())
}
