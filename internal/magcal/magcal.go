// Package magcal fits a magnetometer hard-iron offset and soft-iron
// correction matrix from a collected set of raw magnetometer samples.
package magcal

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// MinSamples is the minimum sample count the fit accepts; fewer than
// this and the problem is underdetermined.
const MinSamples = 200

// State is the calibrator's lifecycle stage.
type State int

const (
	Idle State = iota
	Collecting
	Fitting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Collecting:
		return "collecting"
	case Fitting:
		return "fitting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is a completed ellipsoid fit: a hard-iron offset and a 3x3
// soft-iron scale matrix such that A·(m - b) has ~constant norm.
type Result struct {
	HardIron [3]float64
	SoftIron [3][3]float64
}

// Calibrator runs the {Idle → Collecting → Fitting → Done/Failed} state
// machine described for the magnetometer fit. It is safe for concurrent
// use: AddSample may be called from a telemetry subscriber goroutine
// while the driver calls Start/Stop/Calculate from another.
type Calibrator struct {
	mu      sync.Mutex
	state   State
	samples [][3]float64
}

// New returns an idle Calibrator.
func New() *Calibrator { return &Calibrator{state: Idle} }

// Start transitions Idle→Collecting, discarding any prior samples.
func (c *Calibrator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle && c.state != Done && c.state != Failed {
		return fmt.Errorf("magcal: Start called in state %s", c.state)
	}
	c.state = Collecting
	c.samples = c.samples[:0]
	return nil
}

// AddSample appends a magnetometer triple while Collecting; it is a
// silent no-op outside that state so a subscriber need not check state
// itself on every packet.
func (c *Calibrator) AddSample(mx, my, mz float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Collecting {
		return
	}
	c.samples = append(c.samples, [3]float64{float64(mx), float64(my), float64(mz)})
}

// Stop transitions Collecting→Fitting.
func (c *Calibrator) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Collecting {
		return fmt.Errorf("magcal: Stop called in state %s", c.state)
	}
	c.state = Fitting
	return nil
}

// SampleCount returns the number of samples collected so far.
func (c *Calibrator) SampleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// State returns the calibrator's current lifecycle state.
func (c *Calibrator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Calculate runs the fit once, transitioning to Done on success or
// Failed (returning nil, nil) if the problem is underdetermined or the
// resulting soft-iron matrix is not positive-definite.
func (c *Calibrator) Calculate() (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Fitting {
		return nil, fmt.Errorf("magcal: Calculate called in state %s", c.state)
	}
	if len(c.samples) < MinSamples {
		c.state = Failed
		return nil, nil
	}

	res, ok := fitEllipsoid(c.samples)
	if !ok {
		c.state = Failed
		return nil, nil
	}
	c.state = Done
	return res, nil
}

// fitEllipsoid solves the hard-iron offset as the sample centroid, then
// fits the soft-iron scale as the inverse square root of the sample
// covariance's eigendecomposition — the closed-form linearization of the
// ellipsoid-fit problem: centering the data at its centroid reduces the
// fit to finding the linear map that turns the scatter ellipsoid back
// into a sphere, which a symmetric eigendecomposition gives directly
// without an iterative nonlinear solve.
func fitEllipsoid(samples [][3]float64) (*Result, bool) {
	n := float64(len(samples))
	var centroid [3]float64
	for _, s := range samples {
		centroid[0] += s[0]
		centroid[1] += s[1]
		centroid[2] += s[2]
	}
	centroid[0] /= n
	centroid[1] /= n
	centroid[2] /= n

	var cov [3][3]float64
	for _, s := range samples {
		d := [3]float64{s[0] - centroid[0], s[1] - centroid[1], s[2] - centroid[2]}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				cov[i][j] += d[i] * d[j]
			}
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			cov[i][j] /= n
		}
	}

	symCov := mat.NewSymDense(3, []float64{
		cov[0][0], cov[0][1], cov[0][2],
		cov[1][0], cov[1][1], cov[1][2],
		cov[2][0], cov[2][1], cov[2][2],
	})

	var eig mat.EigenSym
	if ok := eig.Factorize(symCov, true); !ok {
		return nil, false
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// A positive-definite covariance requires every eigenvalue strictly
	// positive; a flat or degenerate sample cloud (e.g. all samples
	// nearly collinear) fails here rather than dividing by ~0.
	const minEigen = 1e-9
	for _, v := range values {
		if v < minEigen {
			return nil, false
		}
	}

	// Soft-iron scale A = V * diag(1/sqrt(3*lambda)) * V^T * r, the
	// symmetric matrix square root of cov^-1 scaled so that the RMS of
	// |A·(m - b)| equals r, the RMS sample distance from the centroid
	// (preserving the device's µT scale).
	var meanRadius float64
	for _, s := range samples {
		d := [3]float64{s[0] - centroid[0], s[1] - centroid[1], s[2] - centroid[2]}
		meanRadius += (d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	}
	meanRadius = math.Sqrt(meanRadius / n)

	var diag mat.Dense
	diag.Mul(&vectors, diagScaled(values, meanRadius))
	var a mat.Dense
	a.Mul(&diag, vectors.T())

	var soft [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			soft[i][j] = a.At(i, j)
		}
	}

	return &Result{
		HardIron: centroid,
		SoftIron: soft,
	}, true
}

func diagScaled(values []float64, meanRadius float64) *mat.Dense {
	d := mat.NewDense(3, 3, nil)
	for i, v := range values {
		d.Set(i, i, meanRadius/math.Sqrt(3*v))
	}
	return d
}
