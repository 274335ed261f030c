package mlmodel

import (
	"math/rand"
	"sort"
)

// KFold 将0..n-1按seed打乱后切成k折，返回每折的验证行（升序）
// k大于n时按n折处理，前n%k折各多分一行
func KFold(n, k int, seed int64) [][]int {
	if k > n {
		k = n
	}
	if k < 1 {
		return nil
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	folds := make([][]int, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		fold := append([]int(nil), perm[start:start+size]...)
		sort.Ints(fold)
		folds[f] = fold
		start += size
	}
	return folds
}

// TrainIndices 第f折之外的全部行（升序）
func TrainIndices(folds [][]int, f int) []int {
	var out []int
	for i, fold := range folds {
		if i != f {
			out = append(out, fold...)
		}
	}
	sort.Ints(out)
	return out
}
