package evaluate

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// f1Epsilon keeps the F1 denominator non-zero during the sweep.
const f1Epsilon = 1e-9

// Candidate is one point of the precision/recall sweep.
type Candidate struct {
	Threshold float64 `json:"threshold"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Sweep evaluates every distinct score as a threshold, highest first.
func Sweep(yTrue []int, scores []float64) ([]Candidate, error) {
	if len(yTrue) != len(scores) {
		return nil, eris.Errorf("evaluate: %d labels but %d scores", len(yTrue), len(scores))
	}
	positives := 0
	for i, y := range yTrue {
		if !binary(y) {
			return nil, eris.Wrapf(model.ErrMalformedLabel, "row %d: label %d", i, y)
		}
		positives += y
	}
	if positives == 0 {
		return nil, eris.New("evaluate: threshold sweep needs at least one positive")
	}

	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	var out []Candidate
	tp, fp := 0, 0
	for i := 0; i < len(idx); {
		thr := scores[idx[i]]
		for i < len(idx) && scores[idx[i]] == thr {
			if yTrue[idx[i]] == 1 {
				tp++
			} else {
				fp++
			}
			i++
		}
		p := float64(tp) / float64(tp+fp)
		r := float64(tp) / float64(positives)
		out = append(out, Candidate{
			Threshold: thr,
			Precision: p,
			Recall:    r,
			F1:        2 * p * r / (p + r + f1Epsilon),
		})
	}
	return out, nil
}

// BestF1Threshold returns the threshold with the highest F1. Ties go to the
// lowest threshold.
func BestF1Threshold(yTrue []int, scores []float64) (Candidate, error) {
	cands, err := Sweep(yTrue, scores)
	if err != nil {
		return Candidate{}, err
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.F1 >= best.F1 {
			best = c
		}
	}
	return best, nil
}
