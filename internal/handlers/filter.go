package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "salesdash/internal/errors"
	"salesdash/internal/models"
)

// Query parameter layout for from/to bounds.
const dateParamLayout = "2006-01-02"

// parseFilter reads the filter from query params: from, to (2006-01-02,
// inclusive) and responsible (comma-separated names; empty means all).
func parseFilter(r *http.Request) (models.Filter, *apperrors.AppError) {
	var f models.Filter
	q := r.URL.Query()

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return models.Filter{}, apperrors.Validation(fmt.Sprintf("invalid 'from' date %q, expected %s", v, dateParamLayout))
		}
		f.From = t
	}

	if v := q.Get("to"); v != "" {
		t, err := time.Parse(dateParamLayout, v)
		if err != nil {
			return models.Filter{}, apperrors.Validation(fmt.Sprintf("invalid 'to' date %q, expected %s", v, dateParamLayout))
		}
		f.To = t
	}

	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return models.Filter{}, apperrors.Validation("'to' date is before 'from' date")
	}

	if v := q.Get("responsible"); v != "" {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				f.Responsible = append(f.Responsible, part)
			}
		}
	}

	return f, nil
}
