package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/league-sync/internal/domain/entity"
)

func collect(t *testing.T, dir string) []string {
	t.Helper()
	var out []string
	for doc, err := range Read(context.Background(), dir) {
		require.NoError(t, err)
		out = append(out, string(doc))
	}
	return out
}

func TestWriterAppendsAndReadReplaysInDependencyOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Append(ctx, entity.KindMatch, []byte(`{"match":{"id":1}}`)))
	require.NoError(t, w.Append(ctx, entity.KindRoster, []byte(`{"team":{"id":2}}`)))
	require.NoError(t, w.Append(ctx, entity.KindPlayer, []byte(`{"player":{"id":3}}`)))
	require.NoError(t, w.Append(ctx, entity.KindMatch, []byte(`{"match":{"id":4}}`)))
	require.Equal(t, 4, w.Lines())
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "matches.jsonl"))
	require.NoError(t, err)
	require.Equal(t, "{\"match\":{\"id\":1}}\n{\"match\":{\"id\":4}}\n", string(raw))

	require.Equal(t, []string{
		`{"player":{"id":3}}`,
		`{"team":{"id":2}}`,
		`{"match":{"id":1}}`,
		`{"match":{"id":4}}`,
	}, collect(t, dir))
}

func TestWriterReopensForAppend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	for _, doc := range []string{`{"player":{"id":1}}`, `{"player":{"id":2}}`} {
		w, err := NewWriter(dir)
		require.NoError(t, err)
		require.NoError(t, w.Append(ctx, entity.KindPlayer, []byte(doc)))
		require.NoError(t, w.Close())
	}
	require.Equal(t, []string{`{"player":{"id":1}}`, `{"player":{"id":2}}`}, collect(t, dir))
}

func TestReadSkipsMissingFilesAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	require.Empty(t, collect(t, dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "teams.jsonl"), []byte("\n{\"team\":{}}\n\n"), 0o644))
	require.Equal(t, []string{`{"team":{}}`}, collect(t, dir))
}

func TestAppendRejectsUnknownKind(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)
	defer w.Close()

	require.Error(t, w.Append(context.Background(), entity.KindTeam, []byte(`{}`)))
}

func TestReadStopsOnCancelledContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "players.jsonl"), []byte("{\"player\":{}}\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var errs int
	for _, err := range Read(ctx, dir) {
		if err != nil {
			errs++
		}
	}
	require.Equal(t, 1, errs)
}
