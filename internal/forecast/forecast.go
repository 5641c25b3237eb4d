// Package forecast extrapolates bucketed revenue with a pluggable trend
// model, keeping the projection logic independent of any one estimator.
package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	apperrors "salesdash/internal/errors"
)

// MinBuckets is the minimum number of historical buckets needed to fit a
// trend.
const MinBuckets = 2

// Model maps a historical revenue series onto predicted values for the next
// horizon buckets. Implementations must be deterministic for a fixed input.
type Model interface {
	Forecast(history []float64, horizon int) ([]float64, error)
}

// OLS fits an ordinary least squares line over the bucket index and
// extrapolates it.
type OLS struct{}

func (OLS) Forecast(history []float64, horizon int) ([]float64, error) {
	if horizon < 1 {
		return nil, apperrors.Validation(fmt.Sprintf("forecast horizon must be positive, got %d", horizon))
	}
	if len(history) < MinBuckets {
		return nil, apperrors.InsufficientData(
			fmt.Sprintf("need at least %d historical buckets to forecast, have %d", MinBuckets, len(history)))
	}

	xs := make([]float64, len(history))
	for i := range xs {
		xs[i] = float64(i)
	}

	alpha, beta := stat.LinearRegression(xs, history, nil, false)

	predicted := make([]float64, horizon)
	for i := range predicted {
		predicted[i] = alpha + beta*float64(len(history)+i)
	}

	return predicted, nil
}
