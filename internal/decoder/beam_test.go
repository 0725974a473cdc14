package decoder

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestLogAdd(t *testing.T) {
	got := logAdd(math.Log(0.25), math.Log(0.5))
	if math.Abs(got-math.Log(0.75)) > 1e-12 {
		t.Fatalf("expected log(0.75), got %v", got)
	}
	if got := logAdd(math.Inf(-1), -3); got != -3 {
		t.Fatalf("expected -3 when adding to -inf, got %v", got)
	}
}

func TestLogSoftmaxIdempotent(t *testing.T) {
	once := logSoftmax([]float32{1, 2, 3, -4}, nil)
	sum := 0.0
	for _, v := range once {
		sum += math.Exp(v)
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %v", sum)
	}

	again := make([]float32, len(once))
	for i, v := range once {
		again[i] = float32(v)
	}
	twice := logSoftmax(again, nil)
	for i := range once {
		if math.Abs(once[i]-twice[i]) > 1e-5 {
			t.Fatalf("log-softmax changed log-probabilities at %d: %v vs %v", i, once[i], twice[i])
		}
	}
}

func TestBeamMergeUsesLogSumExp(t *testing.T) {
	root := newEmptyHypothesis()
	a := root.successor(3, 0, 0, math.Log(0.2))
	b := root.successor(3, 0, 1, math.Log(0.3))
	c := root.successor(3, 0, 2, math.Log(0.1))

	beam := NewBeam()
	beam.Add(a)
	beam.Add(b)
	beam.Add(c)

	if beam.Len() != 1 {
		t.Fatalf("expected identical sequences to merge, got %d entries", beam.Len())
	}
	merged := beam.Best().LogProb
	if math.Abs(merged-math.Log(0.6)) > 1e-12 {
		t.Fatalf("expected log(0.6), got %v", merged)
	}

	peak := math.Log(0.3)
	if merged < peak || merged > peak+math.Log(3) {
		t.Fatalf("merged score %v outside [%v, %v]", merged, peak, peak+math.Log(3))
	}

	// timing comes from the strongest contributor
	if ts := beam.Best().Timestamps; len(ts) != 1 || ts[0] != 1 {
		t.Fatalf("expected timestamp of the strongest path, got %v", ts)
	}
}

func TestBeamPruneKeepsInsertionOrderOnTies(t *testing.T) {
	root := newEmptyHypothesis()
	beam := NewBeam()
	beam.Add(root.successor(1, 0, 0, -1))
	beam.Add(root.successor(2, 0, 0, -0.5))
	beam.Add(root.successor(3, 0, 0, -1))
	beam.Add(root.successor(4, 0, 0, -1))

	pruned := beam.Prune(3)
	if pruned.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", pruned.Len())
	}
	want := []int32{2, 1, 3}
	for i, h := range pruned.Hypotheses() {
		if h.Tokens[0] != want[i] {
			t.Fatalf("entry %d: expected token %d, got %d", i, want[i], h.Tokens[0])
		}
	}
}

func TestBeamBestPrefersShorterOnTie(t *testing.T) {
	root := newEmptyHypothesis()
	long := root.successor(1, 0, 0, 0).successor(2, 0, 1, -1)
	short := root.successor(3, 0, 0, -1)

	beam := NewBeam()
	beam.Add(long)
	beam.Add(short)
	if best := beam.Best(); len(best.Tokens) != 1 || best.Tokens[0] != 3 {
		t.Fatalf("expected the shorter hypothesis, got %v", best.Tokens)
	}
}

func TestHypothesisContextPadsWithBlank(t *testing.T) {
	h := newEmptyHypothesis().successor(7, 0, 0, 0)
	ctx := h.context(3, 0)
	if ctx[0] != 0 || ctx[1] != 0 || ctx[2] != 7 {
		t.Fatalf("expected [0 0 7], got %v", ctx)
	}
	h = h.successor(8, 0, 1, 0).successor(9, 0, 2, 0).successor(4, 0, 3, 0)
	ctx = h.context(2, 0)
	if ctx[0] != 9 || ctx[1] != 4 {
		t.Fatalf("expected [9 4], got %v", ctx)
	}
}

func randomFrames(rng *rand.Rand, n int) [][]float32 {
	frames := make([][]float32, n)
	for i := range frames {
		f := make([]float32, testVocab)
		for j := range f {
			f[j] = float32(rng.NormFloat64() * 2)
		}
		// keep blank likely so sequences stay short and merges happen
		f[0] += 2
		frames[i] = f
	}
	return frames
}

func randomBias(rng *rand.Rand) [][]float32 {
	bias := make([][]float32, testVocab)
	for i := range bias {
		bias[i] = make([]float32, testVocab)
		for j := range bias[i] {
			bias[i][j] = float32(rng.NormFloat64())
		}
	}
	return bias
}

func TestModifiedBeamSearchBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := newScriptedModel(1, 1)
	m.bias = randomBias(rng)
	meta := m.Meta()
	frames := randomFrames(rng, 40)

	for k := 1; k <= 6; k++ {
		beam := newInitialBeam()
		for i, f := range frames {
			var err error
			beam, err = modifiedBeamSearch(m, meta, beam, [][]float32{f}, i, k)
			if err != nil {
				t.Fatalf("modifiedBeamSearch() returned error: %v", err)
			}
			if beam.Len() > k {
				t.Fatalf("beam size %d exceeds %d at frame %d", beam.Len(), k, i)
			}
			seen := make(map[string]bool)
			for _, h := range beam.Hypotheses() {
				if seen[h.Key()] {
					t.Fatalf("duplicate sequence %v in beam", h.Tokens)
				}
				seen[h.Key()] = true
			}
		}
	}
}

func TestBeamSizeOneMatchesGreedy(t *testing.T) {
	for seed := int64(1); seed <= 5; seed++ {
		rng := rand.New(rand.NewSource(seed))
		m := newScriptedModel(1, 1)
		m.bias = randomBias(rng)
		meta := m.Meta()
		frames := randomFrames(rng, 60)

		beam, err := modifiedBeamSearch(m, meta, newInitialBeam(), frames, 0, 1)
		if err != nil {
			t.Fatalf("modifiedBeamSearch() returned error: %v", err)
		}
		greedy, err := greedySearch(m, meta, newEmptyHypothesis(), frames, 0)
		if err != nil {
			t.Fatalf("greedySearch() returned error: %v", err)
		}

		got := beam.Best()
		if len(got.Tokens) != len(greedy.Tokens) {
			t.Fatalf("seed %d: beam %v vs greedy %v", seed, got.Tokens, greedy.Tokens)
		}
		for i := range got.Tokens {
			if got.Tokens[i] != greedy.Tokens[i] || got.Timestamps[i] != greedy.Timestamps[i] {
				t.Fatalf("seed %d: beam %v vs greedy %v", seed, got.Tokens, greedy.Tokens)
			}
		}
		if math.Abs(got.LogProb-greedy.LogProb) > 1e-9 {
			t.Fatalf("seed %d: scores differ %v vs %v", seed, got.LogProb, greedy.LogProb)
		}
	}
}

func TestPredictorCachedAcrossBlanks(t *testing.T) {
	m := newScriptedModel(1, 1)
	meta := m.Meta()

	frames := script(0, 0, 0, 0, 0)
	if _, err := greedySearch(m, meta, newEmptyHypothesis(), frames, 0); err != nil {
		t.Fatalf("greedySearch() returned error: %v", err)
	}
	if m.predictorCalls != 1 {
		t.Fatalf("expected one predictor call over blank frames, got %d", m.predictorCalls)
	}

	m.predictorCalls = 0
	if _, err := greedySearch(m, meta, newEmptyHypothesis(), script(1, 0, 2, 0), 0); err != nil {
		t.Fatalf("greedySearch() returned error: %v", err)
	}
	if m.predictorCalls != 3 {
		t.Fatalf("expected a predictor call per new context, got %d", m.predictorCalls)
	}
}

func TestSearchWrapsJoinerFailure(t *testing.T) {
	m := newScriptedModel(1, 1)
	m.failJoiner = true
	_, err := modifiedBeamSearch(m, m.Meta(), newInitialBeam(), script(1), 0, 4)
	if !errors.Is(err, ErrModelInference) || !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}
