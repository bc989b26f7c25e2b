// Package evaluate scores one flag vector against a reference vector.
package evaluate

import (
	"errors"
	"fmt"

	"github.com/okian/tripqa/internal/domain/model"
)

// ErrLengthMismatch is returned when the two vectors differ in length.
var ErrLengthMismatch = errors.New("prediction and reference differ in length")

// Scores holds confusion counts and derived metrics. Ratios with a zero
// denominator are 0.
type Scores struct {
	TruePositive  int
	FalsePositive int
	TrueNegative  int
	FalseNegative int

	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
}

// Compare scores predicted against truth.
func Compare(predicted, truth model.Flags) (Scores, error) {
	if len(predicted) != len(truth) {
		return Scores{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(predicted), len(truth))
	}
	var s Scores
	for i, p := range predicted {
		switch {
		case p && truth[i]:
			s.TruePositive++
		case p && !truth[i]:
			s.FalsePositive++
		case !p && truth[i]:
			s.FalseNegative++
		default:
			s.TrueNegative++
		}
	}
	s.Accuracy = ratio(s.TruePositive+s.TrueNegative, len(predicted))
	s.Precision = ratio(s.TruePositive, s.TruePositive+s.FalsePositive)
	s.Recall = ratio(s.TruePositive, s.TruePositive+s.FalseNegative)
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
