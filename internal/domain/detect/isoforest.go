package detect

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/okian/tripqa/internal/domain/model"
)

const (
	eulerGamma = 0.5772156649015329

	// autoCutoff is the score above which a record is anomalous when no
	// contamination fraction is given.
	autoCutoff = 0.5

	// scoreTolerance absorbs rounding in the averaged path length, so a
	// table with nothing to isolate scores at the cutoff and not above it.
	scoreTolerance = 1e-9

	maxContamination = 0.5
)

// IsolationForest flags records that random axis-aligned partitions isolate
// quickly.
type IsolationForest struct {
	cfg settings
}

// NewIsolationForest creates an isolation forest detector. The forest is
// regrown from the configured seed on every call, so results are
// reproducible.
func NewIsolationForest(opts ...Option) *IsolationForest {
	return &IsolationForest{cfg: newSettings(opts)}
}

// Name implements Detector.
func (d *IsolationForest) Name() model.DetectorName { return model.DetectorIsolationForest }

// Detect implements Detector.
func (d *IsolationForest) Detect(ctx context.Context, t model.Table) (model.Flags, error) {
	m, scores, err := d.score(ctx, t)
	if err != nil {
		return nil, err
	}

	cutoff := autoCutoff + scoreTolerance
	if d.cfg.contamination > 0 {
		cutoff = quantile(scores, 1-d.cfg.contamination)
	}
	rowFlags := make([]bool, len(scores))
	for i, s := range scores {
		rowFlags[i] = s > cutoff
	}
	return m.Scatter(rowFlags), nil
}

// Scores returns the anomaly score in (0, 1] of every record. Records
// dropped by the missing-value policy score 0.
func (d *IsolationForest) Scores(ctx context.Context, t model.Table) ([]float64, error) {
	m, scores, err := d.score(ctx, t)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t))
	for i, s := range scores {
		out[m.Index[i]] = s
	}
	return out, nil
}

func (d *IsolationForest) score(ctx context.Context, t model.Table) (*Matrix, []float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	c := d.cfg
	if c.trees < 1 || c.maxSamples < 2 {
		return nil, nil, fmt.Errorf("%w: trees=%d max_samples=%d", ErrInvalidParameter, c.trees, c.maxSamples)
	}
	if c.contamination < 0 || c.contamination > maxContamination || math.IsNaN(c.contamination) {
		return nil, nil, fmt.Errorf("%w: contamination %v", ErrInvalidParameter, c.contamination)
	}
	raw, err := Prepare(t, c.columns, c.policy)
	if err != nil {
		return nil, nil, err
	}
	if raw.Len() < 2 {
		return nil, nil, fmt.Errorf("%w: isolation forest needs 2 rows, have %d", ErrTooFewSamples, raw.Len())
	}
	m := raw.Standardize()

	psi := c.maxSamples
	if psi > m.Len() {
		psi = m.Len()
	}
	limit := int(math.Ceil(math.Log2(float64(psi))))
	rng := rand.New(rand.NewSource(c.seed)) //nolint:gosec // seeded for reproducible forests

	forest := make([]*isoNode, c.trees)
	for k := range forest {
		if k%16 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		sample := rng.Perm(m.Len())[:psi]
		forest[k] = growIsoTree(m.Rows, sample, 0, limit, rng)
	}

	norm := averagePathLength(psi)
	scores := make([]float64, m.Len())
	for i, row := range m.Rows {
		total := 0.0
		for _, tree := range forest {
			total += tree.pathLength(row)
		}
		scores[i] = math.Pow(2, -(total/float64(len(forest)))/norm)
	}
	return m, scores, nil
}

type isoNode struct {
	feature     int
	split       float64
	left, right *isoNode
	size        int
}

func (n *isoNode) leaf() bool { return n.left == nil }

func growIsoTree(rows [][]float64, idx []int, depth, limit int, rng *rand.Rand) *isoNode {
	if depth >= limit || len(idx) <= 1 {
		return &isoNode{size: len(idx)}
	}
	dims := len(rows[idx[0]])
	for _, f := range rng.Perm(dims) {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, i := range idx {
			v := rows[i][f]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if !(hi > lo) {
			continue
		}
		split := lo + rng.Float64()*(hi-lo)
		left := make([]int, 0, len(idx))
		right := make([]int, 0, len(idx))
		for _, i := range idx {
			if rows[i][f] < split {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		return &isoNode{
			feature: f,
			split:   split,
			left:    growIsoTree(rows, left, depth+1, limit, rng),
			right:   growIsoTree(rows, right, depth+1, limit, rng),
		}
	}
	// every feature is constant in this node
	return &isoNode{size: len(idx)}
}

func (n *isoNode) pathLength(x []float64) float64 {
	depth := 0
	for !n.leaf() {
		if x[n.feature] < n.split {
			n = n.left
		} else {
			n = n.right
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.size)
}

// averagePathLength is the mean path length of an unsuccessful search in a
// binary search tree of n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}
