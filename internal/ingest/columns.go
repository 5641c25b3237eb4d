package ingest

import (
	"fmt"
	"slices"
	"strings"

	apperrors "salesdash/internal/errors"
)

// columnIndex maps the logical transaction fields to positions in the source
// header row. risk is optional and set to -1 when the column is absent.
type columnIndex struct {
	date        int
	amount      int
	stage       int
	responsible int
	risk        int
}

// Accepted header variants per logical field, matched after normalization.
// Column names vary between exports, so several spellings are recognized.
var columnVariants = map[string][]string{
	"date":        {"start date", "date", "deal date", "transaction date"},
	"amount":      {"sum", "amount", "revenue", "total"},
	"stage":       {"transaction stage", "stage", "status"},
	"responsible": {"responsible", "owner", "manager"},
	"risk":        {"risk", "risk flag", "at risk", "debtor"},
}

// normalizeHeader lowercases, trims, and collapses underscores so that
// "Start_Date " and "start date" map to the same key.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

func mapHeader(header []string) (columnIndex, error) {
	positions := make(map[string]int, len(header))
	for i, cell := range header {
		key := normalizeHeader(cell)
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	find := func(field string) int {
		for _, variant := range columnVariants[field] {
			if idx, ok := positions[variant]; ok {
				return idx
			}
		}
		return -1
	}

	cols := columnIndex{
		date:        find("date"),
		amount:      find("amount"),
		stage:       find("stage"),
		responsible: find("responsible"),
		risk:        find("risk"),
	}

	var missing []string
	for field, idx := range map[string]int{
		"date":        cols.date,
		"amount":      cols.amount,
		"stage":       cols.stage,
		"responsible": cols.responsible,
	} {
		if idx < 0 {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return columnIndex{}, apperrors.Parse(fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")))
	}

	return cols, nil
}
