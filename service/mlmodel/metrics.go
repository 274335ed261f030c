package mlmodel

import "math"

// Accuracy 分类准确率
func Accuracy(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// F1 二分类时为正类(1)的F1，多分类时为宏平均F1
func F1(yTrue, yPred []float64, numClasses int) float64 {
	if numClasses <= 2 {
		return f1ForClass(yTrue, yPred, 1)
	}
	sum, used := 0.0, 0
	for c := 0; c < numClasses; c++ {
		present := false
		for i := range yTrue {
			if int(yTrue[i]) == c || int(yPred[i]) == c {
				present = true
				break
			}
		}
		if !present {
			continue
		}
		sum += f1ForClass(yTrue, yPred, c)
		used++
	}
	if used == 0 {
		return 0
	}
	return sum / float64(used)
}

func f1ForClass(yTrue, yPred []float64, class int) float64 {
	var tp, fp, fn float64
	for i := range yTrue {
		t, p := int(yTrue[i]) == class, int(yPred[i]) == class
		switch {
		case t && p:
			tp++
		case p:
			fp++
		case t:
			fn++
		}
	}
	if tp == 0 {
		return 0
	}
	precision := tp / (tp + fp)
	recall := tp / (tp + fn)
	return 2 * precision * recall / (precision + recall)
}

// R2 决定系数，目标方差为0时完全预测返回1，否则返回0
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))
	var ssRes, ssTot float64
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		m := yTrue[i] - mean
		ssTot += m * m
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// RMSE 均方根误差
func RMSE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	sum := 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(yTrue)))
}
