package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	apperrors "salesdash/internal/errors"
	"salesdash/internal/models"
)

const (
	batchSize  = 10000
	maxWorkers = 10
)

// Result is the outcome of parsing one spreadsheet: the usable transaction
// rows plus the count of rows dropped for unparseable dates.
type Result struct {
	Records []models.Transaction
	Skipped int
}

// Load reads a spreadsheet from disk, dispatching on the file extension.
// .xlsx/.xlsm/.xls go through excelize, everything else is treated as CSV.
func Load(ctx context.Context, path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.ParseWrap(err, "unable to open spreadsheet")
	}
	defer file.Close()

	return Parse(ctx, path, file)
}

// Parse reads a spreadsheet from r, using name only to pick the format.
func Parse(ctx context.Context, name string, r io.Reader) (*Result, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return ParseXLSX(r)
	default:
		return ParseCSV(ctx, r)
	}
}

// ParseXLSX reads the first sheet of an Excel workbook. The first row is the
// header.
func ParseXLSX(r io.Reader) (*Result, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.ParseWrap(err, "unable to read Excel workbook")
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperrors.Parse("workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.ParseWrap(err, "unable to read sheet rows")
	}
	if len(rows) == 0 {
		return nil, apperrors.Parse("empty sheet")
	}

	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, row := range rows[1:] {
		tx, ok := parseRow(cols, row)
		if !ok {
			result.Skipped++
			continue
		}
		result.Records = append(result.Records, tx)
	}

	return result, nil
}

// ParseCSV streams a comma-separated file, parsing records in
// errgroup-limited batches. Quoted fields (embedded commas, newlines) are
// handled by encoding/csv. The first record is the header.
func ParseCSV(ctx context.Context, r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.Parse("empty file")
	}
	if err != nil {
		return nil, apperrors.ParseWrap(err, "unable to read header row")
	}

	cols, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	batch := make([][]string, 0, batchSize)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.ParseWrap(err, "malformed csv record")
		}

		batch = append(batch, record)

		if len(batch) >= batchSize {
			if err := parseBatch(ctx, cols, batch, result); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := parseBatch(ctx, cols, batch, result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func parseBatch(ctx context.Context, cols columnIndex, batch [][]string, result *Result) error {
	type parsedRow struct {
		tx    models.Transaction
		valid bool
	}

	rows := make([]parsedRow, len(batch))

	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	for i, record := range batch {
		wg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			tx, ok := parseRow(cols, record)
			rows[i] = parsedRow{tx: tx, valid: ok}
			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return err
	}

	for _, row := range rows {
		if row.valid {
			result.Records = append(result.Records, row.tx)
		} else {
			result.Skipped++
		}
	}

	return nil
}

// parseRow converts one source row. Rows whose date cannot be parsed are
// dropped; unparseable amounts coerce to 0. When the risk column is absent
// the flag derives from the Debtors stage.
func parseRow(cols columnIndex, record []string) (models.Transaction, bool) {
	date, ok := parseDate(cell(record, cols.date))
	if !ok {
		return models.Transaction{}, false
	}

	stage := strings.TrimSpace(cell(record, cols.stage))

	tx := models.Transaction{
		Date:        date,
		Amount:      parseAmount(cell(record, cols.amount)),
		Stage:       stage,
		Responsible: strings.TrimSpace(cell(record, cols.responsible)),
	}

	if cols.risk >= 0 {
		tx.AtRisk = parseRiskFlag(cell(record, cols.risk))
	} else {
		tx.AtRisk = stage == models.StageDebtors
	}

	return tx, true
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// Source dates are day-first; ISO and common Excel display formats are
// accepted as fallbacks.
var dateFormats = []string{
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01-02-06",
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseAmount(value string) float64 {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, ",", "")
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "\u00a0", "")

	amount, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return amount
}

func parseRiskFlag(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "high", "high risk", "debtor":
		return true
	default:
		return false
	}
}
