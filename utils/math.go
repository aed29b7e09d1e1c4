package utils

import (
	"fmt"
	"math"
	"runtime"
)

// Eps is the double precision machine epsilon.
const Eps = 0x1p-52

func ConstArray(N int, val float64) (v []float64) {
	v = make([]float64, N)
	for i := range v {
		v[i] = val
	}
	return
}

// POW avoids math.Pow for small integer exponents in hot loops.
func POW(x float64, pp int) (y float64) {
	var (
		p       = pp
		flipped bool
	)
	if pp > 8 || pp < -8 {
		return math.Pow(x, float64(pp))
	}
	if p < 0 {
		p = -pp
		flipped = true
	}
	switch p {
	case 0:
		y = 1
	case 1:
		y = x
	case 2:
		y = x * x
	case 3:
		y = x * x * x
	case 4:
		y = x * x
		y = y * y
	case 5:
		y = x * x
		y = y * y * x
	case 6:
		y = x * x
		y = y * y * y
	case 7:
		y = x * x
		y = y * y * y * x
	case 8:
		y = x * x
		y = y * y * y * y
	}
	if flipped {
		y = 1. / y
	}
	return
}

func PositivePart(x float64) float64 {
	return 0.5 * (math.Abs(x) + x)
}

func NegativePart(x float64) float64 {
	return 0.5 * (math.Abs(x) - x)
}

// QuadraticNewtonStep tightens the bracket [tl, tr] of a root of psi
// using one step of the divided-difference Newton method with quadratic
// convergence. psiL, psiR and dpsiL, dpsiR are the values and
// derivatives of psi at the bracket ends; sign selects the root branch:
// +1 for a function increasing across the bracket, -1 for a decreasing
// one. For an exactly quadratic psi both candidates coincide with the
// root.
func QuadraticNewtonStep(tl, tr, psiL, psiR, dpsiL, dpsiR, sign float64) (float64, float64) {
	scaling := 1. / (tr - tl + math.SmallestNonzeroFloat64)

	dd11 := dpsiL
	dd12 := (psiR - psiL) * scaling
	dd22 := dpsiR

	dd112 := (dd12 - dd11) * scaling
	dd122 := (dd22 - dd12) * scaling

	discriminantL := math.Abs(dd11*dd11 - 4.*psiL*dd112)
	discriminantR := math.Abs(dd22*dd22 - 4.*psiR*dd122)

	t1 := tl - 2.*psiL/(dd11+sign*math.Sqrt(discriminantL))
	t2 := tr - 2.*psiR/(dd22+sign*math.Sqrt(discriminantR))

	newL := math.Min(t1, t2)
	newR := math.Max(t1, t2)
	newL = math.Min(math.Max(newL, tl), tr)
	newR = math.Min(math.Max(newR, tl), tr)
	return newL, newR
}

func IsNan(A any) bool {
	switch v := A.(type) {
	case float64:
		return math.IsNaN(v)
	case []float64:
		for _, f := range v {
			if math.IsNaN(f) {
				return true
			}
		}
	case [4]float64:
		for _, f := range v {
			if math.IsNaN(f) {
				return true
			}
		}
	}
	return false
}

func IsNanPanic(A any) {
	if IsNan(A) {
		panic("NAN found")
	}
}

func GetMemUsage() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	// For info on each, see: https://golang.org/pkg/runtime/#MemStats
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}
	return fmt.Sprintf("Alloc = %v MiB TotalAlloc = %v MiB Sys = %v MiB NumGC = %v",
		bToMb(m.Alloc), bToMb(m.TotalAlloc), bToMb(m.Sys), m.NumGC)
}
