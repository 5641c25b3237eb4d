package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "salesdash/internal/errors"
	"salesdash/internal/models"
)

const sampleCSV = `start date,Sum,Transaction stage,Responsible
15.01.2024,1000,Success,Alice
20.01.2024,"not-a-number",Open,Bob
bad-date,500,Open,Bob
05.02.2024,2000,Debtors,Alice
`

func TestParseCSV(t *testing.T) {
	result, err := ParseCSV(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	if len(result.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(result.Records))
	}
	if result.Skipped != 1 {
		t.Errorf("expected 1 skipped row, got %d", result.Skipped)
	}

	first := result.Records[0]
	if !first.Date.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day-first date parsed wrong: %v", first.Date)
	}
	if first.Amount != 1000 || first.Stage != "Success" || first.Responsible != "Alice" {
		t.Errorf("unexpected first record %+v", first)
	}
	if first.AtRisk {
		t.Error("Success row should not be at risk")
	}

	// Unparseable amount coerces to 0 rather than dropping the row.
	if result.Records[1].Amount != 0 {
		t.Errorf("expected coerced amount 0, got %f", result.Records[1].Amount)
	}

	// Without a risk column the Debtors stage drives the flag.
	debtors := result.Records[2]
	if !debtors.AtRisk {
		t.Error("Debtors row should be flagged at risk")
	}
}

func TestParseCSV_ColumnVariants(t *testing.T) {
	csv := "Date,Amount,Stage,Owner\n2024-01-15,100,Open,Alice\n"

	result, err := ParseCSV(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	if result.Records[0].Responsible != "Alice" {
		t.Errorf("Owner column not mapped to responsible: %+v", result.Records[0])
	}
}

func TestParseCSV_ExplicitRiskColumn(t *testing.T) {
	csv := "date,sum,stage,responsible,risk\n15.01.2024,100,Open,Alice,yes\n16.01.2024,100,Debtors,Bob,no\n"

	result, err := ParseCSV(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	if !result.Records[0].AtRisk {
		t.Error("explicit risk column should flag the first row")
	}
	if result.Records[1].AtRisk {
		t.Error("explicit risk column overrides the Debtors-stage derivation")
	}
}

func TestParseCSV_QuotedFields(t *testing.T) {
	csv := "start date,Sum,Transaction stage,Responsible\n" +
		`15.01.2024,"1,250.50",Success,"Smith, Alice"` + "\n"

	result, err := ParseCSV(context.Background(), strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}

	if len(result.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Records))
	}
	got := result.Records[0]
	if got.Amount != 1250.5 {
		t.Errorf("quoted amount with embedded comma = %f, want 1250.5", got.Amount)
	}
	if got.Responsible != "Smith, Alice" {
		t.Errorf("quoted responsible torn across columns: %q", got.Responsible)
	}
}

func TestParseCSV_MissingColumns(t *testing.T) {
	csv := "start date,Responsible\n15.01.2024,Alice\n"

	_, err := ParseCSV(context.Background(), strings.NewReader(csv))
	if err == nil {
		t.Fatal("expected error for missing columns")
	}

	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T", err)
	}
	if appErr.Code != apperrors.CodeParse {
		t.Errorf("expected code %s, got %s", apperrors.CodeParse, appErr.Code)
	}
	if !strings.Contains(appErr.Message, "amount") || !strings.Contains(appErr.Message, "stage") {
		t.Errorf("message should name the missing columns: %q", appErr.Message)
	}
}

func TestParseCSV_Empty(t *testing.T) {
	if _, err := ParseCSV(context.Background(), strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}

	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T", err)
	}
	if appErr.Code != apperrors.CodeParse {
		t.Errorf("expected code %s, got %s", apperrors.CodeParse, appErr.Code)
	}
}

func writeTestXLSX(t *testing.T) string {
	t.Helper()

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)

	rows := [][]any{
		{"start date", "Sum", "Transaction stage", "Responsible"},
		{"15.01.2024", 1000, "Success", "Alice"},
		{"05.02.2024", 2000, "Debtors", "Bob"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := wb.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}

	path := filepath.Join(t.TempDir(), "sales.xlsx")
	if err := wb.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_XLSX(t *testing.T) {
	path := writeTestXLSX(t)

	result, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(result.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Records))
	}
	want := models.Transaction{
		Date:        time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC),
		Amount:      2000,
		Stage:       "Debtors",
		Responsible: "Bob",
		AtRisk:      true,
	}
	if result.Records[1] != want {
		t.Errorf("second record = %+v, want %+v", result.Records[1], want)
	}
}

func TestParseXLSX_NotAWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.xlsx")
	if err := os.WriteFile(path, []byte("this is not a workbook"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for corrupt workbook")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		t.Fatalf("expected *AppError, got %T", err)
	}
	if appErr.Code != apperrors.CodeParse {
		t.Errorf("expected code %s, got %s", apperrors.CodeParse, appErr.Code)
	}
}

func TestNormalizeHeader(t *testing.T) {
	cases := map[string]string{
		" Start_Date ":      "start date",
		"TRANSACTION STAGE": "transaction stage",
		"Sum":               "sum",
		"responsible  ":     "responsible",
	}
	for in, want := range cases {
		if got := normalizeHeader(in); got != want {
			t.Errorf("normalizeHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDate_Formats(t *testing.T) {
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	for _, value := range []string{"15.01.2024", "15/01/2024", "15-01-2024", "2024-01-15"} {
		got, ok := parseDate(value)
		if !ok {
			t.Errorf("parseDate(%q) failed", value)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseDate(%q) = %v, want %v", value, got, want)
		}
	}

	if _, ok := parseDate("yesterday"); ok {
		t.Error("parseDate should reject junk")
	}
}

func TestParseAmount(t *testing.T) {
	cases := map[string]float64{
		"1000":     1000,
		"1,250.50": 1250.5,
		"12 000":   12000,
		"junk":     0,
		"":         0,
		"-250":     -250,
	}
	for in, want := range cases {
		if got := parseAmount(in); got != want {
			t.Errorf("parseAmount(%q) = %f, want %f", in, got, want)
		}
	}
}
