package service

import (
	"context"
	"testing"

	"ai-casedraft-be/internal/dto"
	"ai-casedraft-be/pkg/version"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func editedSession(t *testing.T) (*harness, string) {
	t.Helper()
	h := newHarness(t, newFakePipeline(scriptedStream{body: generated}))
	res := h.submit(t)
	h.editor.body = editFrames(`{"text":"Excelentíssimo Senhor"}`, "[DONE]")
	out, err := h.svc.Edit(context.Background(), res.Id, &dto.EditRequest{Message: "complete"})
	require.NoError(t, err)
	require.True(t, out.Applied)
	return h, res.Id
}

func TestListVersions_NewestFirst(t *testing.T) {
	h, id := editedSession(t)

	versions, err := h.svc.ListVersions(context.Background(), id)

	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].VersionNumber)
	assert.Equal(t, version.OriginChatEdit, versions[0].Origin)
	assert.Equal(t, "complete", versions[0].Description)
	assert.Equal(t, 1, versions[0].AddedLines)
	assert.Equal(t, 1, versions[0].RemovedLines)
	assert.Equal(t, 1, versions[1].VersionNumber)
	assert.Equal(t, 1, versions[1].AddedLines)
	assert.Equal(t, 0, versions[1].RemovedLines)
}

func TestGetVersion_UnifiedDiff(t *testing.T) {
	h, id := editedSession(t)

	v, err := h.svc.GetVersion(context.Background(), id, 2)

	require.NoError(t, err)
	assert.Equal(t, "Excelentíssimo Senhor", v.Content)
	assert.Contains(t, v.UnifiedDiff, "--- version 1")
	assert.Contains(t, v.UnifiedDiff, "-Excelentíssimo...")
	assert.Contains(t, v.UnifiedDiff, "+Excelentíssimo Senhor")

	first, err := h.svc.GetVersion(context.Background(), id, 1)
	require.NoError(t, err)
	assert.Contains(t, first.UnifiedDiff, "+Excelentíssimo...")

	_, err = h.svc.GetVersion(context.Background(), id, 9)
	assert.ErrorIs(t, err, version.ErrVersionNotFound)
}

func TestRestoreVersion_AppendsCopy(t *testing.T) {
	h, id := editedSession(t)

	out, err := h.svc.RestoreVersion(context.Background(), id, 1)
	require.NoError(t, err)

	assert.Equal(t, 3, out.NewVersion)
	assert.Equal(t, "Excelentíssimo...", out.Content)

	snap := h.snapshot(t, id)
	assert.Equal(t, "Excelentíssimo...", snap.Artifact)
	assert.Equal(t, 3, snap.VersionCount)

	original, err := h.svc.GetVersion(context.Background(), id, 1)
	require.NoError(t, err)
	assert.Equal(t, version.OriginInitial, original.Origin)

	restored, err := h.svc.GetVersion(context.Background(), id, 3)
	require.NoError(t, err)
	assert.Equal(t, version.OriginManualRestore, restored.Origin)
	assert.Equal(t, 1, restored.RestoredFrom)

	saved := h.store.Saved(id)
	require.Len(t, saved, 3)
	assert.Equal(t, version.OriginManualRestore, saved[2].Version.Origin)
	assert.Equal(t, dto.UpdateVersion, h.updates.Last().Kind)

	_, err = h.svc.RestoreVersion(context.Background(), id, 42)
	assert.ErrorIs(t, err, version.ErrVersionNotFound)
}

func TestVersions_FallBackToStoreAfterExpiry(t *testing.T) {
	h, id := editedSession(t)
	h.sessions.Delete(id)
	ctx := context.Background()

	versions, err := h.svc.ListVersions(ctx, id)
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	v, err := h.svc.GetVersion(ctx, id, 2)
	require.NoError(t, err)
	assert.Contains(t, v.UnifiedDiff, "+Excelentíssimo Senhor")

	out, err := h.svc.RestoreVersion(ctx, id, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, out.NewVersion)
}
