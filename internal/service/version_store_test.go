package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ai-casedraft-be/internal/model"
	"ai-casedraft-be/internal/pkg/logger"
	"ai-casedraft-be/internal/repository/unitofwork"
	"ai-casedraft-be/pkg/backend"
	"ai-casedraft-be/pkg/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestVersionStore(t *testing.T) IVersionStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.DocumentVersion{}))
	t.Cleanup(func() { sqlDB.Close() })

	return NewVersionStore(unitofwork.NewRepositoryFactory(db), logger.NewNopLogger())
}

func recorded(history *version.History, content string) version.Version {
	return history.RecordVersion(content, version.OriginInitial, "")
}

func TestVersionStore_SaveListGet(t *testing.T) {
	ctx := context.Background()
	vs := newTestVersionStore(t)
	history := version.NewHistory(nil)

	v1 := recorded(history, "linha 1\nlinha 2")
	v2 := history.RecordVersion("linha 1\nlinha 3", version.OriginChatEdit, "troque a linha 2")

	n, err := vs.SaveVersion(ctx, SaveVersionInput{SessionID: "s-1", CaseReference: testCase, Version: v1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = vs.SaveVersion(ctx, SaveVersionInput{
		SessionID:   "s-1",
		Version:     v2,
		ChatHistory: []backend.ChatMessage{{Role: "user", Content: "troque a linha 2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := vs.ListVersions(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].SequenceNumber)
	assert.Equal(t, version.OriginChatEdit, list[0].Origin)
	assert.Equal(t, []string{"linha 3"}, list[0].DiffAgainstPrevious.AddedLines)
	assert.Equal(t, []string{"linha 2"}, list[0].DiffAgainstPrevious.RemovedLines)

	got, err := vs.GetVersion(ctx, "s-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "linha 1\nlinha 2", got.Content)
	assert.WithinDuration(t, v1.CreatedAt, got.CreatedAt, time.Second)

	_, err = vs.GetVersion(ctx, "s-1", 7)
	assert.ErrorIs(t, err, version.ErrVersionNotFound)
}

func TestVersionStore_SaveTakenNumberAppends(t *testing.T) {
	ctx := context.Background()
	vs := newTestVersionStore(t)
	v := recorded(version.NewHistory(nil), "a")

	_, err := vs.SaveVersion(ctx, SaveVersionInput{SessionID: "s-1", Version: v})
	require.NoError(t, err)
	n, err := vs.SaveVersion(ctx, SaveVersionInput{SessionID: "s-1", Version: v})
	require.NoError(t, err)

	assert.Equal(t, 2, n)
}

func TestVersionStore_Restore(t *testing.T) {
	ctx := context.Background()
	vs := newTestVersionStore(t)
	history := version.NewHistory(nil)
	for _, content := range []string{"a", "b"} {
		_, err := vs.SaveVersion(ctx, SaveVersionInput{SessionID: "s-1", Version: recorded(history, content)})
		require.NoError(t, err)
	}

	out, err := vs.RestoreVersion(ctx, "s-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NewVersion)
	assert.Equal(t, "a", out.Content)

	restored, err := vs.GetVersion(ctx, "s-1", 3)
	require.NoError(t, err)
	assert.Equal(t, version.OriginManualRestore, restored.Origin)
	assert.Equal(t, 1, restored.RestoredFrom)
	assert.Equal(t, version.RestoreDescription(1), restored.TriggeringDescription)
	assert.Equal(t, []string{"a"}, restored.DiffAgainstPrevious.AddedLines)
	assert.Equal(t, []string{"b"}, restored.DiffAgainstPrevious.RemovedLines)

	original, err := vs.GetVersion(ctx, "s-1", 1)
	require.NoError(t, err)
	assert.Equal(t, version.OriginInitial, original.Origin)

	_, err = vs.RestoreVersion(ctx, "s-1", 9)
	assert.ErrorIs(t, err, version.ErrVersionNotFound)
}
