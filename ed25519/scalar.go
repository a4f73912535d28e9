package ed25519

// Scalar is an integer modulo the Ed25519 group order l, stored as a
// 32-byte little-endian magnitude in [0, l). The representation and the
// bit-serial add/multiply algorithms below are ported directly from the
// reference firmware's fprime.c, which implements generic "prime field"
// arithmetic parameterized by an arbitrary modulus byte string; here the
// modulus is fixed to l, so the modulus parameter fprime.c threads through
// every call becomes the package-level orderL constant.
type Scalar [32]byte

// orderL is the order of the Ed25519 base point:
// l = 2^252 + 27742317777372353535851937790883648493, little-endian.
var orderL = Scalar{
	0xed, 0xd3, 0xf5, 0x5c, 0x1a, 0x63, 0x12, 0x58,
	0xd6, 0x9c, 0xf7, 0xa2, 0xde, 0xf9, 0xde, 0x14,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10,
}

// orderLMSB is the (variable-time-computed, but fixed at compile time since
// the modulus is public) index of l's most significant set bit.
var orderLMSB = primeMSB(orderL)

// primeMSB finds the index of the highest set bit of a public modulus. This
// runs only over l, never over secret data, so its variable timing in the
// modulus (explicitly called out as acceptable in fprime.c) is harmless.
func primeMSB(p Scalar) int {
	i := len(p) - 1
	for i >= 0 && p[i] == 0 {
		i--
	}
	if i < 0 {
		return -1
	}
	x := p[i]
	bit := i * 8
	for x != 0 {
		x >>= 1
		bit++
	}
	return bit - 1
}

func scalarSelect(cond uint8, zero, one Scalar) Scalar {
	mask := -cond
	var dst Scalar
	for i := range dst {
		dst[i] = zero[i] ^ (mask & (one[i] ^ zero[i]))
	}
	return dst
}

// rawAdd adds p into x in place, little-endian, returning nothing: x may
// carry out of the top byte, which scalarTrySub then resolves against l.
func rawAdd(x *Scalar, p Scalar) {
	var c uint16
	for i := range x {
		c += uint16(x[i]) + uint16(p[i])
		x[i] = byte(c)
		c >>= 8
	}
}

// scalarTrySub subtracts modulus from x if the result would stay
// non-negative, selecting between x and x-modulus via the borrow bit
// rather than branching on it.
func scalarTrySub(x *Scalar, modulus Scalar) {
	var minusP Scalar
	var c uint16
	for i := range x {
		c = uint16(x[i]) - uint16(modulus[i]) - c
		minusP[i] = byte(c)
		c = (c >> 8) & 1
	}
	*x = scalarSelect(uint8(c), minusP, *x)
}

func shiftLeftOneBit(x *Scalar) {
	var c uint16
	for i := range x {
		c |= uint16(x[i]) << 1
		x[i] = byte(c)
		c >>= 8
	}
}

// ScalarAdd returns (a+b) mod l.
func ScalarAdd(a, b Scalar) Scalar {
	r := a
	rawAdd(&r, b)
	scalarTrySub(&r, orderL)
	return r
}

// ScalarMul returns (a*b) mod l via the textbook shift-and-add-mod
// algorithm, processing b's bits from orderLMSB down to 0 so the number of
// iterations depends only on the (public) modulus, never on a or b.
func ScalarMul(a, b Scalar) Scalar {
	var r Scalar
	for i := orderLMSB; i >= 0; i-- {
		bit := (b[i>>3] >> uint(i&7)) & 1

		shiftLeftOneBit(&r)
		scalarTrySub(&r, orderL)

		plusA := r
		rawAdd(&plusA, a)
		scalarTrySub(&plusA, orderL)

		r = scalarSelect(bit, r, plusA)
	}
	return r
}

// ScalarFromBytes reduces an arbitrary-length little-endian byte string
// (such as a hash digest, consumed from its most significant bit down)
// into a canonical scalar mod l, by the same preload-then-bitwise-reduce strategy
// as fprime_from_bytes: load as many whole bits as fit below l unconditionally,
// then fold in the remaining high bits one at a time with a conditional
// subtract.
func ScalarFromBytes(x []byte) Scalar {
	totalBits := len(x) * 8
	preloadTotal := orderLMSB - 1
	if preloadTotal > totalBits {
		preloadTotal = totalBits
	}
	preloadBytes := preloadTotal / 8
	preloadBits := preloadTotal % 8
	rbits := totalBits - preloadTotal

	var n Scalar
	for i := 0; i < preloadBytes; i++ {
		n[i] = x[len(x)-preloadBytes+i]
	}
	if preloadBits != 0 {
		shiftNBits(&n, preloadBits)
		n[0] |= x[len(x)-preloadBytes-1] >> uint(8-preloadBits)
	}

	for i := rbits - 1; i >= 0; i-- {
		bit := (x[i>>3] >> uint(i&7)) & 1
		shiftLeftOneBit(&n)
		n[0] |= bit
		scalarTrySub(&n, orderL)
	}
	return n
}

func shiftNBits(x *Scalar, n int) {
	var c uint32
	for i := range x {
		c |= uint32(x[i]) << uint(n)
		x[i] = byte(c)
		c >>= 8
	}
}
