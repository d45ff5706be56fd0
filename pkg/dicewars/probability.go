package dicewars

import "sync"

type probKey struct {
	attacker, defender, sides int
}

var (
	probMu    sync.RWMutex
	probTable = map[probKey]float64{}
)

// WinProbability returns the exact probability that attackerDice dice beat
// defenderDice dice, each with the given number of sides. The attacker wins
// only with a strictly greater sum.
func WinProbability(attackerDice, defenderDice, sides int) float64 {
	if attackerDice <= 0 || defenderDice <= 0 || sides <= 0 {
		return 0
	}
	k := probKey{attackerDice, defenderDice, sides}
	probMu.RLock()
	p, ok := probTable[k]
	probMu.RUnlock()
	if ok {
		return p
	}
	p = winProbability(sumDistribution(attackerDice, sides), sumDistribution(defenderDice, sides))
	probMu.Lock()
	probTable[k] = p
	probMu.Unlock()
	return p
}

// Precompute fills the probability table for every attacker/defender pair up
// to maxDice in a single pass. A table already filled for maxDice and sides is
// left alone.
func Precompute(maxDice, sides int) {
	if maxDice <= 0 || sides <= 0 {
		return
	}
	probMu.RLock()
	_, done := probTable[probKey{maxDice, maxDice, sides}]
	probMu.RUnlock()
	if done {
		return
	}
	dists := make([][]float64, maxDice+1)
	for n := 1; n <= maxDice; n++ {
		dists[n] = sumDistribution(n, sides)
	}
	probMu.Lock()
	defer probMu.Unlock()
	for a := 1; a <= maxDice; a++ {
		for d := 1; d <= maxDice; d++ {
			probTable[probKey{a, d, sides}] = winProbability(dists[a], dists[d])
		}
	}
}

// sumDistribution returns P(sum == s) for n dice of the given sides, indexed
// by s.
func sumDistribution(n, sides int) []float64 {
	dist := []float64{1}
	face := 1.0 / float64(sides)
	for i := 0; i < n; i++ {
		next := make([]float64, len(dist)+sides)
		for s, p := range dist {
			if p == 0 {
				continue
			}
			for f := 1; f <= sides; f++ {
				next[s+f] += p * face
			}
		}
		dist = next
	}
	return dist
}

func winProbability(att, def []float64) float64 {
	// cumulative P(defender sum < s)
	below := make([]float64, len(att)+1)
	acc := 0.0
	for s := 0; s < len(below); s++ {
		below[s] = acc
		if s < len(def) {
			acc += def[s]
		}
	}
	p := 0.0
	for s, pa := range att {
		if pa == 0 {
			continue
		}
		p += pa * below[s]
	}
	return p
}
