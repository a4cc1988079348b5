package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/domacity/internal/agents"
	"github.com/talgya/domacity/internal/city"
	"github.com/talgya/domacity/internal/stats"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.BeginRun("Testville", 42, 120)
	require.NoError(t, err)

	snap := stats.Snapshot{Month: 0, UnitCount: 8, PercentHoused: 0.9}
	transfers := []agents.Transfer{
		{Buyer: city.Owner{Type: city.OwnerFund}, UnitID: 3, Amount: 900},
		{Buyer: city.Owner{Type: city.OwnerLandlord, ID: 1}, UnitID: 5, Amount: 4200},
	}
	require.NoError(t, db.SaveStep(runID, snap, transfers))

	got, err := db.StepStats(runID, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, got.UnitCount)
	assert.Equal(t, 0.9, got.PercentHoused)

	_, err = db.StepStats(runID, 7)
	assert.Error(t, err, "unsaved month must not resolve")

	require.NoError(t, db.FinishRun(runID))
}

func TestSaveStepIsIdempotentPerMonth(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.BeginRun("Testville", 1, 10)
	require.NoError(t, err)

	require.NoError(t, db.SaveStep(runID, stats.Snapshot{Month: 2, UnitCount: 4}, nil))
	require.NoError(t, db.SaveStep(runID, stats.Snapshot{Month: 2, UnitCount: 6}, nil))

	got, err := db.StepStats(runID, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, got.UnitCount, "re-saving a month replaces the snapshot")
}

func TestSaveFinalUnits(t *testing.T) {
	db := openTestDB(t)
	runID, err := db.BeginRun("Testville", 1, 10)
	require.NoError(t, err)

	units := []*city.Unit{
		{ID: 0, Rent: 500, Value: 120000, Condition: 0.8, Owner: city.Owner{Type: city.OwnerLandlord, ID: 2}},
		{ID: 1, Rent: 300, Value: 70000, Condition: 1.0, Owner: city.Owner{Type: city.OwnerFund}},
	}
	units[1].AddTenant(4)

	require.NoError(t, db.SaveFinalUnits(runID, units))
	// Full replace semantics: saving again must not duplicate rows.
	require.NoError(t, db.SaveFinalUnits(runID, units))

	var count int
	require.NoError(t, db.conn.Get(&count,
		"SELECT COUNT(*) FROM final_units WHERE run_id = ?", runID.String()))
	assert.Equal(t, 2, count)
}
