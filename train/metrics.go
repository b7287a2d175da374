package train

import (
	"sort"
)

// Metrics 测试集评估结果
type Metrics struct {
	Accuracy        float64 `json:"accuracy"`
	ROCAUC          float64 `json:"roc_auc"`
	F1              float64 `json:"f1"`
	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	ConfusionMatrix [][]int `json:"confusion_matrix"` // [[TN, FP], [FN, TP]]
	Threshold       float64 `json:"threshold"`
}

// Evaluate 按阈值评估：p >= threshold 判为正类
func Evaluate(scores []float64, labels []int, threshold float64) Metrics {
	var tp, fp, tn, fn int
	for i, s := range scores {
		pred := s >= threshold
		switch {
		case pred && labels[i] == 1:
			tp++
		case pred:
			fp++
		case labels[i] == 1:
			fn++
		default:
			tn++
		}
	}
	m := Metrics{
		ConfusionMatrix: [][]int{{tn, fp}, {fn, tp}},
		ROCAUC:          ROCAUC(scores, labels),
		Threshold:       threshold,
	}
	if n := len(scores); n > 0 {
		m.Accuracy = float64(tp+tn) / float64(n)
	}
	m.Precision, m.Recall, m.F1 = prf(tp, fp, fn)
	return m
}

func prf(tp, fp, fn int) (precision, recall, f1 float64) {
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// ROCAUC 用秩和（Mann–Whitney U）计算 AUC，并列得分取平均秩。只有一个类别时返回 0.5。
func ROCAUC(scores []float64, labels []int) float64 {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, len(scores))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var nPos, nNeg int
	sumPos := 0.0
	for i, y := range labels {
		if y == 1 {
			nPos++
			sumPos += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return (sumPos - float64(nPos*(nPos+1))/2) / float64(nPos*nNeg)
}

// OptimalThreshold 在所有候选阈值（去重后的得分）中选 F1 最大者；并列时取最小阈值。
func OptimalThreshold(scores []float64, labels []int) float64 {
	candidates := append([]float64(nil), scores...)
	sort.Float64s(candidates)

	best, bestF1 := 0.5, -1.0
	for i, th := range candidates {
		if i > 0 && th == candidates[i-1] {
			continue
		}
		var tp, fp, fn int
		for k, s := range scores {
			pred := s >= th
			switch {
			case pred && labels[k] == 1:
				tp++
			case pred:
				fp++
			case labels[k] == 1:
				fn++
			}
		}
		if _, _, f1 := prf(tp, fp, fn); f1 > bestF1 {
			best, bestF1 = th, f1
		}
	}
	return best
}
