// Package fe implements arithmetic in the prime field GF(2^255-19) used by
// the Ed25519 curve. Elements are 32-byte little-endian magnitudes; every
// operation normalizes its result into the canonical range [0, p) before
// returning, and the arithmetic operations do not branch on the value of
// their operands — only on bit position, following the constant-structure
// style of the original edsign/fprime C sources this package is ported
// from. Sqrt is the exception: it branches on whether a candidate root
// squares back to its input.
package fe

import "math/bits"

// Elt is a field element, stored as four 64-bit little-endian limbs.
// A normalized Elt always satisfies 0 <= value < p.
type Elt [4]uint64

// p = 2^255 - 19, the field modulus.
var p = Elt{0xffffffffffffffed, 0xffffffffffffffff, 0xffffffffffffffff, 0x7fffffffffffffff}

// Zero is the additive identity.
func Zero() Elt { return Elt{} }

// One is the multiplicative identity.
func One() Elt { return Elt{1, 0, 0, 0} }

// cmpGE reports whether a >= b, without branching on the outcome's use.
func cmpGE(a, b Elt) uint64 {
	var borrow uint64
	for i := 0; i < 4; i++ {
		_, borrow = bits.Sub64(a[i], b[i], borrow)
	}
	return 1 - borrow
}

func subMod(a, b Elt) Elt {
	var r Elt
	var borrow uint64
	for i := 0; i < 4; i++ {
		r[i], borrow = bits.Sub64(a[i], b[i], borrow)
	}
	return r
}

// reduceOnce subtracts p from x if x >= p, in constant structure.
func reduceOnce(x Elt) Elt {
	ge := cmpGE(x, p)
	sub := subMod(x, p)
	return Select(uint8(ge), x, sub)
}

// normalize brings a loosely-reduced value (known to be < 2p) into [0, p).
func normalize(x Elt) Elt {
	return reduceOnce(x)
}

// Select returns a when cond == 0 and b when cond == 1. cond must be 0 or 1;
// the choice is made with a bitmask, never a data-dependent branch.
func Select(cond uint8, a, b Elt) Elt {
	mask := uint64(cond) * 0xffffffffffffffff
	var r Elt
	for i := 0; i < 4; i++ {
		r[i] = a[i] ^ (mask & (a[i] ^ b[i]))
	}
	return r
}

// Add returns a+b mod p. a and b must already be normalized.
func Add(a, b Elt) Elt {
	var r Elt
	var carry uint64
	for i := 0; i < 4; i++ {
		r[i], carry = bits.Add64(a[i], b[i], carry)
	}
	// a,b < p < 2^255 so a+b < 2p < 2^256: no carry out of the 4th limb.
	return normalize(r)
}

// Sub returns a-b mod p. a and b must already be normalized.
func Sub(a, b Elt) Elt {
	// b < p always, so p-b never underflows; a + (p-b) mod p = a-b mod p.
	negB := subMod(p, b)
	return Add(a, negB)
}

// Negate returns -a mod p.
func Negate(a Elt) Elt { return Sub(Zero(), a) }

func mulLimbsSmall(h [4]uint64, m uint64) [5]uint64 {
	var out [5]uint64
	var carry uint64
	for i := 0; i < 4; i++ {
		hi, lo := bits.Mul64(h[i], m)
		var c uint64
		out[i], c = bits.Add64(lo, carry, 0)
		carry = hi + c
	}
	out[4] = carry
	return out
}

// addAt ripples val into buf starting at position pos, propagating carry as
// far as needed. Every step adds exactly two 64-bit operands (the running
// carry is always 0 or 1), so this can never lose a bit the way a 3-operand
// hi+c1+c2 accumulation can.
func addAt(buf *[8]uint64, pos int, val uint64) {
	carry := val
	for i := pos; carry != 0 && i < len(buf); i++ {
		buf[i], carry = bits.Add64(buf[i], carry, 0)
	}
}

// Mul returns a*b mod p, reducing the 512-bit product via 2^255 = 19 (mod p).
func Mul(a, b Elt) Elt {
	// Schoolbook 4x4-limb multiply producing an 8-limb (512-bit) product.
	// Each partial product's hi/lo half is folded in with addAt, which
	// only ever performs single two-operand, single-bit-carry additions
	// (never a 3-operand add that could itself overflow a uint64).
	var prod [8]uint64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			hi, lo := bits.Mul64(a[i], b[j])
			addAt(&prod, i+j, lo)
			addAt(&prod, i+j+1, hi)
		}
	}

	// P = L + H*2^256, and 2^256 = 2*2^255 = 38 (mod p).
	var l, h [4]uint64
	copy(l[:], prod[0:4])
	copy(h[:], prod[4:8])

	m := mulLimbsSmall(h, 38) // up to 5 limbs

	// T = L + M, up to ~263 bits across 5 limbs.
	var t [5]uint64
	var carry uint64
	for i := 0; i < 4; i++ {
		t[i], carry = bits.Add64(l[i], m[i], carry)
	}
	t[4], _ = bits.Add64(0, m[4], carry)

	// high = T >> 255 = (t[4] << 1) | (t[3] >> 63)
	high := (t[4] << 1) | (t[3] >> 63)
	var low Elt
	low[0], low[1], low[2] = t[0], t[1], t[2]
	low[3] = t[3] &^ (uint64(1) << 63)

	extra := high * 19
	res := Add(low, Elt{extra, 0, 0, 0})
	return res
}

// Square returns a*a mod p.
func Square(a Elt) Elt { return Mul(a, a) }

// FromBytes loads a little-endian 32-byte magnitude and reduces it mod p.
func FromBytes(b [32]byte) Elt {
	var e Elt
	for i := 0; i < 4; i++ {
		e[i] = uint64(b[8*i]) | uint64(b[8*i+1])<<8 | uint64(b[8*i+2])<<16 | uint64(b[8*i+3])<<24 |
			uint64(b[8*i+4])<<32 | uint64(b[8*i+5])<<40 | uint64(b[8*i+6])<<48 | uint64(b[8*i+7])<<56
	}
	// A raw 32-byte load is always < 2^256 < 2p+38; two conditional
	// subtractions suffice to bring it into [0, p).
	return reduceOnce(reduceOnce(e))
}

// Bytes returns the canonical little-endian encoding of a.
func (a Elt) Bytes() [32]byte {
	n := normalize(a)
	var out [32]byte
	for i := 0; i < 4; i++ {
		v := n[i]
		out[8*i] = byte(v)
		out[8*i+1] = byte(v >> 8)
		out[8*i+2] = byte(v >> 16)
		out[8*i+3] = byte(v >> 24)
		out[8*i+4] = byte(v >> 32)
		out[8*i+5] = byte(v >> 40)
		out[8*i+6] = byte(v >> 48)
		out[8*i+7] = byte(v >> 56)
	}
	return out
}

// Equal reports whether a and b represent the same field element.
func Equal(a, b Elt) bool {
	na, nb := normalize(a), normalize(b)
	var acc uint64
	for i := 0; i < 4; i++ {
		acc |= na[i] ^ nb[i]
	}
	return acc == 0
}

// IsNegative reports the parity (low bit) of a's canonical representation;
// used as the sign bit packed into the high bit of an encoded point.
func IsNegative(a Elt) uint8 {
	n := normalize(a)
	return uint8(n[0] & 1)
}

func pow(a Elt, exp Elt) Elt {
	r := One()
	for i := 255; i >= 0; i-- {
		r = Square(r)
		bit := (exp[i/64] >> uint(i%64)) & 1
		if bit == 1 {
			r = Mul(r, a)
		}
	}
	return r
}

// expInv = p-2, the Fermat's-little-theorem inversion exponent.
var expInv = Elt{0xffffffffffffffeb, 0xffffffffffffffff, 0xffffffffffffffff, 0x7fffffffffffffff}

// Invert returns a^-1 mod p. Invert(0) is 0.
func Invert(a Elt) Elt { return pow(a, expInv) }

// expSqrt = (p+3)/8.
var expSqrt = Elt{0xfffffffffffffffe, 0xffffffffffffffff, 0xffffffffffffffff, 0x0fffffffffffffff}

// expSqrtM1 = (p-1)/4, the exponent used to derive sqrt(-1).
var expSqrtM1 = Elt{0xfffffffffffffffb, 0xffffffffffffffff, 0xffffffffffffffff, 0x1fffffffffffffff}

var sqrtM1 = pow(Elt{2, 0, 0, 0}, expSqrtM1)

// Sqrt returns a square root of a and true if a is a quadratic residue mod p
// (p = 5 mod 8, so the standard two-candidate test applies).
func Sqrt(a Elt) (Elt, bool) {
	candidate := pow(a, expSqrt)
	if Equal(Square(candidate), a) {
		return normalize(candidate), true
	}
	twisted := Mul(candidate, sqrtM1)
	if Equal(Square(twisted), a) {
		return normalize(twisted), true
	}
	return Elt{}, false
}

// D is the twisted-Edwards curve constant d = -121665/121666 mod p.
var D = Mul(Negate(Elt{121665, 0, 0, 0}), Invert(Elt{121666, 0, 0, 0}))
