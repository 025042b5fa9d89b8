package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/julianstephens/carelog/internal/clock"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/ledger"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/storage"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestWorkbook(t *testing.T) {
	ctx := context.Background()
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "carelog.json"))
	require.NoError(t, store.Init())

	require.NoError(t, store.AddTaskDefinition(ctx, models.TaskDefinition{
		ID:        "def-1",
		Kind:      models.TaskKindMedication,
		Name:      "Thyroid pill",
		Dose:      "0.1mg",
		Frequency: models.Recurrence{Type: models.RecurrenceDaily},
		Active:    true,
	}))
	_, err := store.CreateOccurrence(ctx, models.Occurrence{
		ID:               "occ-1",
		TaskDefinitionID: "def-1",
		Date:             "2026-03-02",
		ScheduledAt:      t0,
		Status:           models.StatusPending,
	})
	require.NoError(t, err)
	_, err = store.CreateOccurrence(ctx, models.Occurrence{
		ID:               "occ-2",
		TaskDefinitionID: "def-1",
		Date:             "2026-03-05",
		ScheduledAt:      t0.AddDate(0, 0, 3),
		Status:           models.StatusPending,
	})
	require.NoError(t, err)

	clk := clock.NewManual(t0)
	l := ledger.New(store, clk, time.UTC)
	_, rec, err := l.Confirm(ctx, models.Actor{ID: "nurse"}, ledger.ConfirmRequest{OccurrenceID: "occ-1"})
	require.NoError(t, err)
	notes := "with food"
	_, err = l.Edit(ctx, models.Actor{ID: "admin", Admin: true}, rec.ID, ledger.EditRequest{Notes: &notes}, nil)
	require.NoError(t, err)

	data, err := Workbook(ctx, store, "2026-03-01", "2026-03-03", time.UTC)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{OccurrencesSheet, LedgerSheet}, f.GetSheetList())

	occRows, err := f.GetRows(OccurrencesSheet)
	require.NoError(t, err)
	require.Len(t, occRows, 2, "header plus one occurrence in range")
	assert.Equal(t, OccurrencesHeader, occRows[0])
	assert.Equal(t, "Thyroid pill", occRows[1][2])
	assert.Equal(t, "confirmed", occRows[1][6])
	assert.Equal(t, "2026-03-02 08:00", occRows[1][7])

	ledgerRows, err := f.GetRows(LedgerSheet)
	require.NoError(t, err)
	require.Len(t, ledgerRows, 3)
	assert.Equal(t, "confirm", ledgerRows[1][3])
	assert.Equal(t, "edit", ledgerRows[2][3])
	assert.Equal(t, "with food", ledgerRows[2][6])
	assert.Contains(t, ledgerRows[2][10], `"notes":""`)
}

func TestWorkbookRejectsBadRange(t *testing.T) {
	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "carelog.json"))
	require.NoError(t, store.Init())

	_, err := Workbook(context.Background(), store, "2026-03-05", "2026-03-01", time.UTC)
	assert.True(t, apperr.IsValidation(err))
	_, err = Workbook(context.Background(), store, "03/01/2026", "2026-03-01", time.UTC)
	assert.True(t, apperr.IsValidation(err))
}
