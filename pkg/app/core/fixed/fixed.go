// Package fixed implements the deterministic fixed-point number used for every
// balance, price and fee in the engine.
//
// A Point stores an unsigned integer scaled by 10^Decimals. All operations are
// overflow checked and return ErrArithmetic instead of wrapping. Division takes an
// explicit Rounding mode: amounts owed to a user round Down, amounts owed by a user
// round Up.
package fixed

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits carried by a Point.
const Decimals = 9

var ErrArithmetic = errors.New("arithmetic error")

var (
	scale   = uint256.NewInt(1_000_000_000)
	bpsBase = uint256.NewInt(10_000)
)

// Rounding selects how an inexact division is resolved.
type Rounding uint8

const (
	Down Rounding = iota // toward zero, used for amounts paid out
	Up                   // away from zero, used for amounts charged
)

// Point is a non-negative fixed-point value with Decimals fractional digits.
// The zero value is 0.
type Point struct {
	v uint256.Int
}

func Zero() Point { return Point{} }

func One() Point {
	var p Point
	p.v.Set(scale)
	return p
}

// FromUnits returns n whole units.
func FromUnits(n uint64) Point {
	var p Point
	p.v.Mul(uint256.NewInt(n), scale)
	return p
}

// FromRaw returns the Point whose scaled integer representation is raw.
func FromRaw(raw uint64) Point {
	var p Point
	p.v.SetUint64(raw)
	return p
}

// Parse reads a non-negative decimal string such as "12.5" or "0.000000001".
func Parse(s string) (Point, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Point{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Point {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// FromDecimal converts d, rejecting negatives and precision beyond Decimals.
func FromDecimal(d decimal.Decimal) (Point, error) {
	if d.Sign() < 0 {
		return Point{}, fmt.Errorf("%w: negative value %s", ErrArithmetic, d)
	}
	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return Point{}, fmt.Errorf("%w: %s exceeds %d decimals", ErrArithmetic, d, Decimals)
	}
	v, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return Point{}, fmt.Errorf("%w: %s overflows", ErrArithmetic, d)
	}
	return Point{v: *v}, nil
}

// Decimal returns p as an exact decimal.
func (p Point) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(p.v.ToBig(), -Decimals)
}

func (p Point) String() string { return p.Decimal().String() }

// Float64 is for display only.
func (p Point) Float64() float64 {
	f, _ := p.Decimal().Float64()
	return f
}

// Raw returns the scaled integer representation.
func (p Point) Raw() *big.Int { return p.v.ToBig() }

func (p Point) IsZero() bool { return p.v.IsZero() }

// Cmp returns -1, 0 or +1 as p is less than, equal to or greater than q.
func (p Point) Cmp(q Point) int { return p.v.Cmp(&q.v) }

func (p Point) LessThan(q Point) bool    { return p.v.Lt(&q.v) }
func (p Point) GreaterThan(q Point) bool { return p.v.Gt(&q.v) }

func Min(a, b Point) Point {
	if a.LessThan(b) {
		return a
	}
	return b
}

func Max(a, b Point) Point {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func (p Point) Add(q Point) (Point, error) {
	var r Point
	if _, overflow := r.v.AddOverflow(&p.v, &q.v); overflow {
		return Point{}, fmt.Errorf("%w: %s + %s overflows", ErrArithmetic, p, q)
	}
	return r, nil
}

func (p Point) Sub(q Point) (Point, error) {
	var r Point
	if _, underflow := r.v.SubOverflow(&p.v, &q.v); underflow {
		return Point{}, fmt.Errorf("%w: %s - %s underflows", ErrArithmetic, p, q)
	}
	return r, nil
}

// Mul returns p*q.
func (p Point) Mul(q Point, mode Rounding) (Point, error) {
	return mulDiv(&p.v, &q.v, scale, mode)
}

// Div returns p/q.
func (p Point) Div(q Point, mode Rounding) (Point, error) {
	return mulDiv(&p.v, scale, &q.v, mode)
}

// MulInt returns p*n.
func (p Point) MulInt(n uint64) (Point, error) {
	var r Point
	if _, overflow := r.v.MulOverflow(&p.v, uint256.NewInt(n)); overflow {
		return Point{}, fmt.Errorf("%w: %s * %d overflows", ErrArithmetic, p, n)
	}
	return r, nil
}

// Half returns p/2 rounded down.
func (p Point) Half() Point {
	var r Point
	r.v.Rsh(&p.v, 1)
	return r
}

// Bps returns the basis-point fraction bps/10000 of p.
func (p Point) Bps(bps uint32, mode Rounding) (Point, error) {
	return mulDiv(&p.v, uint256.NewInt(uint64(bps)), bpsBase, mode)
}

// MulDiv returns a*b/c computed at full precision. It is used for proportional
// splits such as lp*reserve/supply where the intermediate product would lose
// precision if rescaled.
func MulDiv(a, b, c Point, mode Rounding) (Point, error) {
	return mulDiv(&a.v, &b.v, &c.v, mode)
}

func mulDiv(x, y, d *uint256.Int, mode Rounding) (Point, error) {
	if d.IsZero() {
		return Point{}, fmt.Errorf("%w: division by zero", ErrArithmetic)
	}
	var r Point
	if _, overflow := r.v.MulDivOverflow(x, y, d); overflow {
		return Point{}, fmt.Errorf("%w: multiply overflows", ErrArithmetic)
	}
	if mode == Up {
		var rem uint256.Int
		if !rem.MulMod(x, y, d).IsZero() {
			if _, overflow := r.v.AddOverflow(&r.v, uint256.NewInt(1)); overflow {
				return Point{}, fmt.Errorf("%w: rounding overflows", ErrArithmetic)
			}
		}
	}
	return r, nil
}

func (p Point) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Point) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
