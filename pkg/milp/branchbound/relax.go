package branchbound

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// lpStatus is the outcome of one LP relaxation.
type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

// row is a sparse linear row over original variable indexes.
type row struct {
	cols []int
	vals []float64
	rhs  float64
}

// relaxation is the problem in internal form: minimize c·x subject to
// le rows (≤) and eq rows (=), with per-variable bounds supplied per node.
type relaxation struct {
	n   int
	c   []float64
	le  []row
	eq  []row
	tol float64
}

// lpResult is a solved relaxation.
type lpResult struct {
	status lpStatus
	obj    float64
	x      []float64
}

const feasTol = 1e-7

// solve solves the LP relaxation under bounds lo ≤ x ≤ hi.
//
// Fixed variables are substituted out and the rest shifted to start at zero.
// Upper bounds become explicit rows only when the remaining rows do not
// already imply them. Equality rows are reduced to an independent subset,
// because the simplex requires A to have full row rank. Variables that
// appear in no remaining row are set directly from the objective sign.
func (r *relaxation) solve(lo, hi []float64) (lpResult, error) {
	x := make([]float64, r.n)
	pos := make([]int, r.n) // LP column of each free variable, -1 otherwise
	var free []int
	for j := 0; j < r.n; j++ {
		pos[j] = -1
		if hi[j]-lo[j] <= 1e-12 {
			x[j] = lo[j]
			continue
		}
		if math.IsInf(lo[j], -1) {
			return lpResult{}, fmt.Errorf("variable %d has no finite lower bound", j)
		}
		x[j] = lo[j]
		free = append(free, j)
	}
	ub := make([]float64, r.n) // shifted upper bound of free variables
	for _, j := range free {
		ub[j] = hi[j] - lo[j]
	}

	isFree := make([]bool, r.n)
	for _, j := range free {
		isFree[j] = true
	}
	le, ok := reduceRows(r.le, x, isFree, false)
	if !ok {
		return lpResult{status: lpInfeasible}, nil
	}
	eq, ok := reduceRows(r.eq, x, isFree, true)
	if !ok {
		return lpResult{status: lpInfeasible}, nil
	}
	eq, ok = independentRows(eq)
	if !ok {
		return lpResult{status: lpInfeasible}, nil
	}

	implied := impliedUpper(le, ub)

	used := make([]bool, r.n)
	for _, rs := range [][]row{le, eq} {
		for _, rw := range rs {
			for _, j := range rw.cols {
				used[j] = true
			}
		}
	}

	var cols []int
	for _, j := range free {
		if used[j] {
			pos[j] = len(cols)
			cols = append(cols, j)
			continue
		}
		// Appears in no row: push to whichever bound the objective prefers.
		if r.c[j] < 0 {
			if math.IsInf(ub[j], 1) {
				return lpResult{status: lpUnbounded}, nil
			}
			x[j] += ub[j]
		}
	}

	var bounds []row
	for _, j := range cols {
		if !math.IsInf(ub[j], 1) && implied[j] > ub[j]+1e-9 {
			bounds = append(bounds, row{cols: []int{j}, vals: []float64{1}, rhs: ub[j]})
		}
	}
	le = append(le, bounds...)

	if len(cols) > 0 {
		y, status, err := r.simplex(cols, pos, le, eq)
		if err != nil {
			return lpResult{}, err
		}
		if status != lpOptimal {
			return lpResult{status: status}, nil
		}
		for k, j := range cols {
			x[j] += y[k]
		}
	}

	for j := range x {
		x[j] = math.Min(math.Max(x[j], lo[j]), hi[j])
	}
	var obj float64
	for j, cj := range r.c {
		obj += cj * x[j]
	}
	return lpResult{status: lpOptimal, obj: obj, x: x}, nil
}

// simplex builds the standard form [A_le I; A_eq 0] y = b and calls
// gonum's Simplex on it.
func (r *relaxation) simplex(cols, pos []int, le, eq []row) ([]float64, lpStatus, error) {
	nv := len(cols)
	m := len(le) + len(eq)
	n := nv + len(le)

	data := make([]float64, m*n)
	b := make([]float64, m)
	for i, rw := range le {
		for k, j := range rw.cols {
			data[i*n+pos[j]] += rw.vals[k]
		}
		data[i*n+nv+i] = 1
		b[i] = rw.rhs
	}
	for i, rw := range eq {
		ri := len(le) + i
		for k, j := range rw.cols {
			data[ri*n+pos[j]] += rw.vals[k]
		}
		b[ri] = rw.rhs
	}
	for i := range b {
		if b[i] < 0 {
			b[i] = -b[i]
			for k := i * n; k < (i+1)*n; k++ {
				data[k] = -data[k]
			}
		}
	}
	c := make([]float64, n)
	for k, j := range cols {
		c[k] = r.c[j]
	}

	_, y, err := lp.Simplex(c, mat.NewDense(m, n, data), b, r.tol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return nil, lpInfeasible, nil
	case errors.Is(err, lp.ErrUnbounded):
		return nil, lpUnbounded, nil
	case err != nil:
		return nil, lpOptimal, fmt.Errorf("simplex on %d×%d system: %w", m, n, err)
	}
	return y[:nv], lpOptimal, nil
}

// reduceRows substitutes the base value x[j] of every variable into rows and
// keeps only the terms of free variables. Rows left without terms are checked
// for feasibility and dropped.
func reduceRows(rows []row, x []float64, free []bool, equality bool) ([]row, bool) {
	out := make([]row, 0, len(rows))
	for _, rw := range rows {
		nr := row{rhs: rw.rhs}
		for k, j := range rw.cols {
			nr.rhs -= rw.vals[k] * x[j]
			if free[j] {
				nr.cols = append(nr.cols, j)
				nr.vals = append(nr.vals, rw.vals[k])
			}
		}
		if len(nr.cols) == 0 {
			if equality && math.Abs(nr.rhs) > feasTol {
				return nil, false
			}
			if !equality && nr.rhs < -feasTol {
				return nil, false
			}
			continue
		}
		out = append(out, nr)
	}
	return out, true
}

// independentRows keeps a linearly independent subset of equality rows.
// Each row is reduced against the pivots kept so far; a row that vanishes is
// dependent and must also have a vanishing right-hand side, otherwise the
// system is inconsistent.
func independentRows(rows []row) ([]row, bool) {
	if len(rows) == 0 {
		return rows, true
	}
	index := make(map[int]int)
	for _, rw := range rows {
		for _, j := range rw.cols {
			if _, ok := index[j]; !ok {
				index[j] = len(index)
			}
		}
	}
	width := len(index)

	type pivot struct {
		col int
		vec []float64
		rhs float64
	}
	var pivots []pivot
	kept := make([]row, 0, len(rows))
	for _, rw := range rows {
		vec := make([]float64, width)
		scale := 0.0
		for k, j := range rw.cols {
			vec[index[j]] += rw.vals[k]
			scale = math.Max(scale, math.Abs(rw.vals[k]))
		}
		rhs := rw.rhs
		for _, p := range pivots {
			f := vec[p.col] / p.vec[p.col]
			if f == 0 {
				continue
			}
			for i := range vec {
				vec[i] -= f * p.vec[i]
			}
			rhs -= f * p.rhs
		}
		best, at := 0.0, -1
		for i, v := range vec {
			if a := math.Abs(v); a > best {
				best, at = a, i
			}
		}
		if best <= 1e-9*math.Max(scale, 1) {
			if math.Abs(rhs) > feasTol*math.Max(scale, 1) {
				return nil, false
			}
			continue
		}
		pivots = append(pivots, pivot{col: at, vec: vec, rhs: rhs})
		kept = append(kept, rw)
	}
	return kept, true
}

// impliedUpper derives upper bounds that the ≤ rows already enforce on the
// shifted variables (all of which are ≥ 0). A row with only non-negative
// coefficients bounds each of its variables by rhs/coef. A row with a single
// positive coefficient bounds that variable once the negative terms are at
// their upper bounds; this is the shape of "flow ≤ capacity·placement".
func impliedUpper(rows []row, ub []float64) []float64 {
	implied := make([]float64, len(ub))
	for j := range implied {
		implied[j] = math.Inf(1)
	}
	for _, rw := range rows {
		allPos := true
		for _, v := range rw.vals {
			if v < 0 {
				allPos = false
				break
			}
		}
		if !allPos {
			continue
		}
		for k, j := range rw.cols {
			if v := rw.vals[k]; v > 0 {
				implied[j] = math.Min(implied[j], rw.rhs/v)
			}
		}
	}

	effective := make([]float64, len(ub))
	for j := range ub {
		effective[j] = math.Min(ub[j], implied[j])
	}
	for _, rw := range rows {
		target, coef := -1, 0.0
		rest := rw.rhs
		ok := true
		for k, j := range rw.cols {
			v := rw.vals[k]
			switch {
			case v > 0:
				if target >= 0 {
					ok = false
				}
				target, coef = j, v
			case v < 0:
				if math.IsInf(effective[j], 1) {
					ok = false
				}
				rest -= v * effective[j]
			}
			if !ok {
				break
			}
		}
		if ok && target >= 0 {
			implied[target] = math.Min(implied[target], rest/coef)
		}
	}
	return implied
}
