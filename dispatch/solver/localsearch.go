// Intra-route local search passes. Each pass repeats full sweeps until no
// move yields a lexicographic (penalty, route time) improvement.

package solver

import (
	"github.com/dispatch-sim/dispatch-sim/dispatch"
)

type seqEvaluator func([]int) dispatch.Evaluation

// twoOpt reverses segments while improvements are found.
func twoOpt(seq []int, eval seqEvaluator) ([]int, dispatch.Evaluation) {
	best := append([]int(nil), seq...)
	bestEv := eval(best)
	improved := true
	for improved {
		improved = false
		n := len(best)
		for i := 0; i < n-2 && !improved; i++ {
			for j := i + 2; j < n; j++ {
				if i == 0 && j == n-1 {
					continue
				}
				cand := make([]int, 0, n)
				cand = append(cand, best[:i+1]...)
				for k := j; k > i; k-- {
					cand = append(cand, best[k])
				}
				cand = append(cand, best[j+1:]...)
				if ev := eval(cand); ev.BetterThan(bestEv) {
					best, bestEv = cand, ev
					improved = true
					break
				}
			}
		}
	}
	return best, bestEv
}

// orOpt moves blocks of size 1..k to other positions.
func orOpt(seq []int, k int, eval seqEvaluator) ([]int, dispatch.Evaluation) {
	best := append([]int(nil), seq...)
	bestEv := eval(best)
	improved := true
	for improved {
		improved = false
		n := len(best)
		for size := 1; size <= k && !improved; size++ {
			for i := 0; i+size <= n && !improved; i++ {
				block := append([]int(nil), best[i:i+size]...)
				rest := make([]int, 0, n-size)
				rest = append(rest, best[:i]...)
				rest = append(rest, best[i+size:]...)
				for j := 0; j <= len(rest); j++ {
					if j == i {
						continue
					}
					cand := make([]int, 0, n)
					cand = append(cand, rest[:j]...)
					cand = append(cand, block...)
					cand = append(cand, rest[j:]...)
					if ev := eval(cand); ev.BetterThan(bestEv) {
						best, bestEv = cand, ev
						improved = true
						break
					}
				}
			}
		}
	}
	return best, bestEv
}

// relocate moves single stops to every other position.
func relocate(seq []int, eval seqEvaluator) ([]int, dispatch.Evaluation) {
	best := append([]int(nil), seq...)
	bestEv := eval(best)
	improved := true
	for improved {
		improved = false
		n := len(best)
		for i := 0; i < n && !improved; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				cand := make([]int, 0, n)
				cand = append(cand, best[:i]...)
				cand = append(cand, best[i+1:]...)
				cand = insertAt(cand, j, best[i])
				if ev := eval(cand); ev.BetterThan(bestEv) {
					best, bestEv = cand, ev
					improved = true
					break
				}
			}
		}
	}
	return best, bestEv
}
