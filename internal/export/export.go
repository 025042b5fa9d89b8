// Package export writes occurrences and their ledger history to an xlsx
// workbook.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/julianstephens/carelog/internal/adhoc"
	"github.com/julianstephens/carelog/internal/constants"
	apperr "github.com/julianstephens/carelog/internal/errors"
	"github.com/julianstephens/carelog/internal/models"
	"github.com/julianstephens/carelog/internal/utils"
)

const (
	OccurrencesSheet = "Occurrences"
	LedgerSheet      = "Ledger"

	cellTimeLayout = "2006-01-02 15:04"
)

var OccurrencesHeader = []string{
	"Date",
	"Scheduled",
	"Task",
	"Kind",
	"Dose",
	"Location",
	"Status",
	"Confirmed At",
	"Confirmed By",
	"Notes",
	"Ad Hoc",
	"Category",
	"Needs Review",
}

var LedgerHeader = []string{
	"Occurrence",
	"Task",
	"Version",
	"Action",
	"Confirmed At",
	"Confirmed By",
	"Notes",
	"Edited At",
	"Edited By",
	"Edit Of",
	"Previous Values",
	"Needs Review",
}

type Source interface {
	ListOccurrences(ctx context.Context, date string) ([]models.Occurrence, error)
	ListTaskDefinitions(ctx context.Context, includeInactive bool) ([]models.TaskDefinition, error)
	ListConfirmationHistory(ctx context.Context, occurrenceID string) ([]models.ConfirmationRecord, error)
}

// Workbook builds the export for the inclusive date range and returns the
// encoded xlsx.
func Workbook(ctx context.Context, src Source, from, to string, loc *time.Location) ([]byte, error) {
	start, err := utils.ParseDateInLocation(from, loc)
	if err != nil {
		return nil, apperr.Validation("export", "invalid from date %q", from)
	}
	end, err := utils.ParseDateInLocation(to, loc)
	if err != nil {
		return nil, apperr.Validation("export", "invalid to date %q", to)
	}
	if end.Before(start) {
		return nil, apperr.Validation("export", "to date %s is before from date %s", to, from)
	}

	defs, err := src.ListTaskDefinitions(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list task definitions: %w", err)
	}
	byID := make(map[string]models.TaskDefinition, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}

	var occRows, ledgerRows [][]any
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		occs, err := src.ListOccurrences(ctx, day.Format(constants.DateFormat))
		if err != nil {
			return nil, fmt.Errorf("list occurrences: %w", err)
		}
		for _, occ := range occs {
			def := byID[occ.TaskDefinitionID]
			occRows = append(occRows, occurrenceRow(occ, def, loc))

			history, err := src.ListConfirmationHistory(ctx, occ.ID)
			if err != nil {
				return nil, fmt.Errorf("list history for %s: %w", occ.ID, err)
			}
			// oldest first reads naturally in a sheet
			for i := len(history) - 1; i >= 0; i-- {
				row, err := ledgerRow(history[i], taskName(occ, def), loc)
				if err != nil {
					return nil, err
				}
				ledgerRows = append(ledgerRows, row)
			}
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, OccurrencesSheet, OccurrencesHeader, occRows); err != nil {
		return nil, err
	}
	if err := writeSheet(f, LedgerSheet, LedgerHeader, ledgerRows); err != nil {
		return nil, err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	if idx, err := f.GetSheetIndex(OccurrencesSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func taskName(occ models.Occurrence, def models.TaskDefinition) string {
	if d, _, ok := adhoc.Describe(occ); ok {
		return d.Name
	}
	if def.Name == "" {
		return occ.TaskDefinitionID
	}
	return def.Name
}

func occurrenceRow(occ models.Occurrence, def models.TaskDefinition, loc *time.Location) []any {
	category := occ.Category
	notes := occ.Notes
	if d, text, ok := adhoc.Describe(occ); ok {
		category = string(d.Category)
		notes = text
	}
	confirmedBy := ""
	if occ.ConfirmedBy != nil {
		confirmedBy = *occ.ConfirmedBy
	}
	return []any{
		occ.Date,
		formatTime(&occ.ScheduledAt, loc),
		taskName(occ, def),
		string(def.Kind),
		def.Dose,
		def.Location,
		string(occ.Status),
		formatTime(occ.ConfirmedAt, loc),
		confirmedBy,
		notes,
		yesNo(occ.IsAdHoc),
		category,
		yesNo(occ.NeedsReview),
	}
}

func ledgerRow(rec models.ConfirmationRecord, task string, loc *time.Location) ([]any, error) {
	previous := ""
	if rec.PreviousValues != nil {
		data, err := json.Marshal(rec.PreviousValues)
		if err != nil {
			return nil, fmt.Errorf("encode previous values of %s: %w", rec.ID, err)
		}
		previous = string(data)
	}
	return []any{
		rec.OccurrenceID,
		task,
		rec.Version,
		string(rec.Action),
		formatTime(rec.ConfirmedAt, loc),
		rec.ConfirmedBy,
		rec.Notes,
		formatTime(rec.EditedAt, loc),
		rec.EditedBy,
		rec.EditOf,
		previous,
		yesNo(rec.NeedsReview),
	}, nil
}

func writeSheet(f *excelize.File, name string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(name, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		if err := f.SetColWidth(name, colName, colName, 18); err != nil {
			return err
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, name, err)
		}
	}

	if err := f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header of %s: %w", name, err)
	}
	return nil
}

func formatTime(t *time.Time, loc *time.Location) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(loc).Format(cellTimeLayout)
}

func yesNo(b bool) string {
	return strconv.FormatBool(b)
}
