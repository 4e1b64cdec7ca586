package fixed

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Wide is the unscaled product of two Points (scaled by 10^(2*Decimals)).
// Pool invariants are compared as Wide values so no precision is lost.
type Wide struct {
	v uint256.Int
}

// MulWide returns the exact product p*q.
func (p Point) MulWide(q Point) (Wide, error) {
	var w Wide
	if _, overflow := w.v.MulOverflow(&p.v, &q.v); overflow {
		return Wide{}, fmt.Errorf("%w: %s * %s overflows", ErrArithmetic, p, q)
	}
	return w, nil
}

func (w Wide) Cmp(o Wide) int { return w.v.Cmp(&o.v) }

func (w Wide) Sub(o Wide) (Wide, error) {
	var r Wide
	if _, underflow := r.v.SubOverflow(&w.v, &o.v); underflow {
		return Wide{}, fmt.Errorf("%w: wide subtraction underflows", ErrArithmetic)
	}
	return r, nil
}

// Quo returns w/p as a Point.
func (w Wide) Quo(p Point, mode Rounding) (Point, error) {
	if p.v.IsZero() {
		return Point{}, fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	var r, rem Point
	r.v.DivMod(&w.v, &p.v, &rem.v)
	if mode == Up && !rem.v.IsZero() {
		if _, overflow := r.v.AddOverflow(&r.v, uint256.NewInt(1)); overflow {
			return Point{}, fmt.Errorf("%w: rounding overflows", ErrArithmetic)
		}
	}
	return r, nil
}

// Sqrt returns the square root of w as a Point.
func (w Wide) Sqrt(mode Rounding) Point {
	var r Point
	r.v.Sqrt(&w.v)
	if mode == Up {
		var sq uint256.Int
		sq.Mul(&r.v, &r.v)
		if !sq.Eq(&w.v) {
			r.v.AddUint64(&r.v, 1)
		}
	}
	return r
}

func (w Wide) String() string { return w.v.Dec() }
