// Package evaluate scores binary predictions: per-class precision, recall
// and F1, ROC AUC, and decision-threshold selection.
package evaluate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/naf-analyzer/internal/model"
)

// ClassMetrics are the scores for one class, or an average over classes.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Metrics is a binary classification report.
type Metrics struct {
	Classes     [2]ClassMetrics `json:"classes"`
	Accuracy    float64         `json:"accuracy"`
	MacroAvg    ClassMetrics    `json:"macro_avg"`
	WeightedAvg ClassMetrics    `json:"weighted_avg"`
	Confusion   [2][2]int       `json:"confusion"` // [true][predicted]
	AUC         *float64        `json:"auc,omitempty"`
	Threshold   *float64        `json:"threshold,omitempty"`
}

// Report computes the classification report. scores may be nil; when given
// they must align with yTrue and are used for ROC AUC.
func Report(yTrue, yPred []int, scores []float64) (Metrics, error) {
	var m Metrics
	if len(yTrue) != len(yPred) {
		return m, eris.Errorf("evaluate: %d labels but %d predictions", len(yTrue), len(yPred))
	}
	if scores != nil && len(scores) != len(yTrue) {
		return m, eris.Errorf("evaluate: %d labels but %d scores", len(yTrue), len(scores))
	}
	if len(yTrue) == 0 {
		return m, eris.New("evaluate: no samples")
	}

	for i := range yTrue {
		if !binary(yTrue[i]) || !binary(yPred[i]) {
			return m, eris.Wrapf(model.ErrMalformedLabel, "row %d: true=%d pred=%d", i, yTrue[i], yPred[i])
		}
		m.Confusion[yTrue[i]][yPred[i]]++
	}

	n := len(yTrue)
	for c := 0; c < 2; c++ {
		tp := m.Confusion[c][c]
		predicted := m.Confusion[0][c] + m.Confusion[1][c]
		actual := m.Confusion[c][0] + m.Confusion[c][1]
		cm := ClassMetrics{
			Precision: ratio(tp, predicted),
			Recall:    ratio(tp, actual),
			Support:   actual,
		}
		cm.F1 = f1(cm.Precision, cm.Recall)
		m.Classes[c] = cm
	}

	m.Accuracy = ratio(m.Confusion[0][0]+m.Confusion[1][1], n)
	m.MacroAvg = ClassMetrics{Support: n}
	m.WeightedAvg = ClassMetrics{Support: n}
	for _, cm := range m.Classes {
		m.MacroAvg.Precision += cm.Precision / 2
		m.MacroAvg.Recall += cm.Recall / 2
		m.MacroAvg.F1 += cm.F1 / 2
		w := float64(cm.Support) / float64(n)
		m.WeightedAvg.Precision += cm.Precision * w
		m.WeightedAvg.Recall += cm.Recall * w
		m.WeightedAvg.F1 += cm.F1 * w
	}

	if scores != nil {
		if auc, ok := AUC(yTrue, scores); ok {
			m.AUC = &auc
		}
	}
	return m, nil
}

// AUC returns the area under the ROC curve as the normalized Mann-Whitney
// statistic, with tied scores sharing their average rank. It reports false
// when either class is absent.
func AUC(yTrue []int, scores []float64) (float64, bool) {
	n := len(yTrue)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg int
	var rankSum float64
	for i, y := range yTrue {
		if y == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0, false
	}
	return (rankSum - float64(pos)*float64(pos+1)/2) / (float64(pos) * float64(neg)), true
}

// Predict labels scores at threshold; a score equal to the threshold is
// positive.
func Predict(scores []float64, threshold float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		if s >= threshold {
			out[i] = 1
		}
	}
	return out
}

// Format renders the report as fixed-width text.
func (m Metrics) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%12s %10s %10s %10s %10s\n\n", "", "precision", "recall", "f1-score", "support")
	for c, cm := range m.Classes {
		fmt.Fprintf(&b, "%12d %10.4f %10.4f %10.4f %10d\n", c, cm.Precision, cm.Recall, cm.F1, cm.Support)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%12s %10s %10s %10.4f %10d\n", "accuracy", "", "", m.Accuracy, m.MacroAvg.Support)
	for _, row := range []struct {
		name string
		cm   ClassMetrics
	}{{"macro avg", m.MacroAvg}, {"weighted avg", m.WeightedAvg}} {
		fmt.Fprintf(&b, "%12s %10.4f %10.4f %10.4f %10d\n", row.name, row.cm.Precision, row.cm.Recall, row.cm.F1, row.cm.Support)
	}

	b.WriteString("\nconfusion matrix (rows=true, cols=predicted)\n")
	fmt.Fprintf(&b, "%12s %10d %10d\n", "true 0", m.Confusion[0][0], m.Confusion[0][1])
	fmt.Fprintf(&b, "%12s %10d %10d\n", "true 1", m.Confusion[1][0], m.Confusion[1][1])

	if m.AUC != nil {
		fmt.Fprintf(&b, "\nroc auc: %.4f\n", *m.AUC)
	}
	if m.Threshold != nil {
		fmt.Fprintf(&b, "threshold: %.4f\n", *m.Threshold)
	}
	return b.String()
}

func binary(x int) bool { return x == 0 || x == 1 }

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func f1(p, r float64) float64 {
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}
