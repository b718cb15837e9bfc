package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fixtureprep/internal/fixture"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedgerRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)
	base := time.Unix(1_700_000_000, 0)

	entries := []Entry{
		{RunID: "r1", Format: "dae", Staged: "/out/dae", DescriptionFiles: 1, MeshIndexSize: 2, RefsUpdated: 2, RefsUnresolved: 1, StartedAt: base, Duration: time.Second},
		{RunID: "r2", Format: "unity", Staged: "/out/unity", DescriptionFiles: 1, MeshIndexSize: 4, RefsUpdated: 5, UnityNestedRemoved: true, StartedAt: base.Add(time.Minute), Duration: 2 * time.Second},
		{RunID: "r3", Format: "dae", Staged: "/out/dae", DescriptionFiles: 2, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, l.Record(ctx, e))
	}

	all, err := l.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"r3", "r2", "r1"}, []string{all[0].RunID, all[1].RunID, all[2].RunID})
	assert.True(t, all[1].UnityNestedRemoved)
	assert.Equal(t, 2*time.Second, all[1].Duration)
	assert.True(t, all[2].StartedAt.Equal(base))

	dae, err := l.Recent(ctx, "dae", 1)
	require.NoError(t, err)
	require.Len(t, dae, 1)
	assert.Equal(t, "r3", dae[0].RunID)
}

func TestLedgerRecordReplaces(t *testing.T) {
	ctx := context.Background()
	l := openTemp(t)

	require.NoError(t, l.Record(ctx, Entry{RunID: "r1", Format: "stl", RefsUpdated: 1}))
	require.NoError(t, l.Record(ctx, Entry{RunID: "r1", Format: "stl", RefsUpdated: 7}))

	got, err := l.Recent(ctx, "stl", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].RefsUpdated)
}

func TestLedgerRequiresRunID(t *testing.T) {
	l := openTemp(t)
	assert.Error(t, l.Record(context.Background(), Entry{Format: "dae"}))
}

func TestEntryFromSummary(t *testing.T) {
	s := fixture.Summary{
		RunID: "id", Format: "mjcf", Staged: "/s", DescriptionFiles: 3, MeshIndexSize: 9,
		RefsUpdated: 4, RefsUnresolved: 2, UnityNestedRemoved: false, Duration: time.Millisecond,
	}
	e := EntryFromSummary(s)
	assert.Equal(t, Entry{
		RunID: "id", Format: "mjcf", Staged: "/s", DescriptionFiles: 3, MeshIndexSize: 9,
		RefsUpdated: 4, RefsUnresolved: 2, Duration: time.Millisecond,
	}, e)
}

func TestBindPostgres(t *testing.T) {
	l := &Ledger{postgres: true}
	assert.Equal(t, "SELECT $1, $2", l.bind("SELECT ?, ?"))
	assert.Equal(t, "SELECT ?", (&Ledger{}).bind("SELECT ?"))
}

func TestOpenEmptyDSN(t *testing.T) {
	_, err := Open(" ")
	assert.Error(t, err)
}
