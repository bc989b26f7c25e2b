package detect

import (
	"context"
	"fmt"

	"github.com/okian/tripqa/internal/domain/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Noise is the DBSCAN label of points outside every cluster.
const Noise = -1

// DBSCAN flags points that density clustering leaves as noise.
type DBSCAN struct {
	cfg settings
}

// NewDBSCAN creates a density-clustering detector.
func NewDBSCAN(opts ...Option) *DBSCAN {
	return &DBSCAN{cfg: newSettings(opts)}
}

// Name implements Detector.
func (d *DBSCAN) Name() model.DetectorName { return model.DetectorDBSCAN }

// Detect implements Detector.
func (d *DBSCAN) Detect(ctx context.Context, t model.Table) (model.Flags, error) {
	m, labels, err := d.cluster(ctx, t)
	if err != nil {
		return nil, err
	}
	rowFlags := make([]bool, len(labels))
	for i, l := range labels {
		rowFlags[i] = l == Noise
	}
	return m.Scatter(rowFlags), nil
}

// Labels returns the cluster label of every record: Noise or a cluster id
// starting at 0. Records dropped by the missing-value policy get Noise.
func (d *DBSCAN) Labels(ctx context.Context, t model.Table) ([]int, error) {
	m, labels, err := d.cluster(ctx, t)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(t))
	for i := range out {
		out[i] = Noise
	}
	for i, l := range labels {
		out[m.Index[i]] = l
	}
	return out, nil
}

func (d *DBSCAN) cluster(ctx context.Context, t model.Table) (*Matrix, []int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !(d.cfg.eps > 0) || d.cfg.minSamples < 1 {
		return nil, nil, fmt.Errorf("%w: eps=%v min_samples=%d", ErrInvalidParameter, d.cfg.eps, d.cfg.minSamples)
	}
	raw, err := Prepare(t, d.cfg.columns, d.cfg.policy)
	if err != nil {
		return nil, nil, err
	}
	if raw.Len() < d.cfg.minSamples {
		return nil, nil, fmt.Errorf("%w: dbscan needs %d rows, have %d", ErrTooFewSamples, d.cfg.minSamples, raw.Len())
	}
	m := raw.Standardize()
	return m, Cluster(m.Rows, d.cfg.eps, d.cfg.minSamples), nil
}

// Cluster runs DBSCAN over rows with Euclidean distance. A point counts as
// its own neighbour.
func Cluster(rows [][]float64, eps float64, minSamples int) []int {
	const unvisited = -2

	n := len(rows)
	neighbours := make([][]int, n)
	for i := 0; i < n; i++ {
		neighbours[i] = append(neighbours[i], i)
		for j := i + 1; j < n; j++ {
			if floats.Distance(rows[i], rows[j], 2) <= eps {
				neighbours[i] = append(neighbours[i], j)
				neighbours[j] = append(neighbours[j], i)
			}
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}
	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		if len(neighbours[i]) < minSamples {
			labels[i] = Noise
			continue
		}
		id := next
		next++
		labels[i] = id
		queue := append([]int(nil), neighbours[i]...)
		for k := 0; k < len(queue); k++ {
			j := queue[k]
			if labels[j] == Noise {
				// border point reached from a core point
				labels[j] = id
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = id
			if len(neighbours[j]) >= minSamples {
				queue = append(queue, neighbours[j]...)
			}
		}
	}
	return labels
}

// PCAReconstruction flags records whose reconstruction from the top
// principal components has an unusually large error.
type PCAReconstruction struct {
	cfg settings
}

// NewPCAReconstruction creates a PCA reconstruction-error detector.
func NewPCAReconstruction(opts ...Option) *PCAReconstruction {
	return &PCAReconstruction{cfg: newSettings(opts)}
}

// Name implements Detector.
func (d *PCAReconstruction) Name() model.DetectorName { return model.DetectorPCAReconstruction }

// Detect implements Detector.
func (d *PCAReconstruction) Detect(ctx context.Context, t model.Table) (model.Flags, error) {
	m, errs, err := d.reconstructionErrors(ctx, t)
	if err != nil {
		return nil, err
	}
	cutoff := quantile(errs, d.cfg.percentile/100)
	rowFlags := make([]bool, len(errs))
	for i, e := range errs {
		rowFlags[i] = e > cutoff
	}
	return m.Scatter(rowFlags), nil
}

// Errors returns the per-record mean squared reconstruction error. Records
// dropped by the missing-value policy get 0.
func (d *PCAReconstruction) Errors(ctx context.Context, t model.Table) ([]float64, error) {
	m, errs, err := d.reconstructionErrors(ctx, t)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t))
	for i, e := range errs {
		out[m.Index[i]] = e
	}
	return out, nil
}

func (d *PCAReconstruction) reconstructionErrors(ctx context.Context, t model.Table) (*Matrix, []float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p := d.cfg.percentile
	if d.cfg.components < 1 || !(p >= 0 && p <= 100) {
		return nil, nil, fmt.Errorf("%w: components=%d percentile=%v", ErrInvalidParameter, d.cfg.components, p)
	}
	raw, err := Prepare(t, d.cfg.columns, d.cfg.policy)
	if err != nil {
		return nil, nil, err
	}
	if raw.Len() < 2 {
		return nil, nil, fmt.Errorf("%w: pca needs 2 rows, have %d", ErrTooFewSamples, raw.Len())
	}
	m := raw.Standardize()
	x := m.Dense()
	n, dims := x.Dims()

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, nil, fmt.Errorf("%w: principal component decomposition failed", ErrInvalidParameter)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, avail := vecs.Dims()
	k := min(d.cfg.components, avail)
	w := vecs.Slice(0, dims, 0, k)

	centred := mat.NewDense(n, dims, nil)
	for j := 0; j < dims; j++ {
		col := mat.Col(nil, j, x)
		mean := stat.Mean(col, nil)
		floats.AddConst(-mean, col)
		centred.SetCol(j, col)
	}

	var proj, recon mat.Dense
	proj.Mul(centred, w)
	recon.Mul(&proj, w.T())

	errs := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for j := 0; j < dims; j++ {
			diff := centred.At(i, j) - recon.At(i, j)
			sum += diff * diff
		}
		errs[i] = sum / float64(dims)
	}
	return m, errs, nil
}
