// Package sha512 implements the SHA-512 compression function behind an
// explicit block-at-a-time API: Init, Block, Final, Get. Callers that need
// to hash a message incrementally, interleaved with other work on the same
// bytes (as the streaming Ed25519 verifier in package ed25519 does), drive
// the state machine directly instead of buffering the whole message through
// an io.Writer. This mirrors the block/final split the original sha512.c
// (part of the reference libuptiny firmware) exposes to edsign.c.
package sha512

import "encoding/binary"

const (
	// BlockSize is the size in bytes of a SHA-512 input block.
	BlockSize = 128
	// Size is the size in bytes of a SHA-512 digest.
	Size = 64
)

var k = [80]uint64{
	0x428a2f98d728ae22, 0x7137449123ef65cd, 0xb5c0fbcfec4d3b2f, 0xe9b5dba58189dbbc,
	0x3956c25bf348b538, 0x59f111f1b605d019, 0x923f82a4af194f9b, 0xab1c5ed5da6d8118,
	0xd807aa98a3030242, 0x12835b0145706fbe, 0x243185be4ee4b28c, 0x550c7dc3d5ffb4e2,
	0x72be5d74f27b896f, 0x80deb1fe3b1696b1, 0x9bdc06a725c71235, 0xc19bf174cf692694,
	0xe49b69c19ef14ad2, 0xefbe4786384f25e3, 0x0fc19dc68b8cd5b5, 0x240ca1cc77ac9c65,
	0x2de92c6f592b0275, 0x4a7484aa6ea6e483, 0x5cb0a9dcbd41fbd4, 0x76f988da831153b5,
	0x983e5152ee66dfab, 0xa831c66d2db43210, 0xb00327c898fb213f, 0xbf597fc7beef0ee4,
	0xc6e00bf33da88fc2, 0xd5a79147930aa725, 0x06ca6351e003826f, 0x142929670a0e6e70,
	0x27b70a8546d22ffc, 0x2e1b21385c26c926, 0x4d2c6dfc5ac42aed, 0x53380d139d95b3df,
	0x650a73548baf63de, 0x766a0abb3c77b2a8, 0x81c2c92e47edaee6, 0x92722c851482353b,
	0xa2bfe8a14cf10364, 0xa81a664bbc423001, 0xc24b8b70d0f89791, 0xc76c51a30654be30,
	0xd192e819d6ef5218, 0xd69906245565a910, 0xf40e35855771202a, 0x106aa07032bbd1b8,
	0x19a4c116b8d2d0c8, 0x1e376c085141ab53, 0x2748774cdf8eeb99, 0x34b0bcb5e19b48a8,
	0x391c0cb3c5c95a63, 0x4ed8aa4ae3418acb, 0x5b9cca4f7763e373, 0x682e6ff3d6b2b8a3,
	0x748f82ee5defb2fc, 0x78a5636f43172f60, 0x84c87814a1f0ab72, 0x8cc702081a6439ec,
	0x90befffa23631e28, 0xa4506cebde82bde9, 0xbef9a3f7b2c67915, 0xc67178f2e372532b,
	0xca273eceea26619c, 0xd186b8c721c0c207, 0xeada7dd6cde0eb1e, 0xf57d4f7fee6ed178,
	0x06f067aa72176fba, 0x0a637dc5a2c898a6, 0x113f9804bef90dae, 0x1b710b35131c471b,
	0x28db77f523047d84, 0x32caab7b40c72493, 0x3c9ebe0a15c9bebc, 0x431d67c49c100d4c,
	0x4cc5d4becb3e42b6, 0x597f299cfc657e2a, 0x5fcb6fab3ad6faec, 0x6c44198c4a475817,
}

var iv = [8]uint64{
	0x6a09e667f3bcc908, 0xbb67ae8584caa73b, 0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
	0x510e527fade682d1, 0x9b05688c2b3e6c1f, 0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
}

// State holds the running digest and total byte counter of an
// in-progress SHA-512 computation.
type State struct {
	h   [8]uint64
	len uint64 // total bytes processed across all Block calls
}

// Init resets s to the SHA-512 initial hash value.
func Init(s *State) {
	s.h = iv
	s.len = 0
}

func rotr(x uint64, n uint) uint64 { return x>>n | x<<(64-n) }

// Block absorbs exactly one 128-byte block, updating the running digest.
func Block(s *State, block []byte) {
	if len(block) != BlockSize {
		panic("sha512: Block requires exactly 128 bytes")
	}
	s.len += BlockSize

	var w [80]uint64
	for i := 0; i < 16; i++ {
		w[i] = binary.BigEndian.Uint64(block[i*8:])
	}
	for i := 16; i < 80; i++ {
		s0 := rotr(w[i-15], 1) ^ rotr(w[i-15], 8) ^ (w[i-15] >> 7)
		s1 := rotr(w[i-2], 19) ^ rotr(w[i-2], 61) ^ (w[i-2] >> 6)
		w[i] = w[i-16] + s0 + w[i-7] + s1
	}

	a, b, c, d, e, f, g, h := s.h[0], s.h[1], s.h[2], s.h[3], s.h[4], s.h[5], s.h[6], s.h[7]
	for i := 0; i < 80; i++ {
		s1 := rotr(e, 14) ^ rotr(e, 18) ^ rotr(e, 41)
		ch := (e & f) ^ (^e & g)
		t1 := h + s1 + ch + k[i] + w[i]
		s0 := rotr(a, 28) ^ rotr(a, 34) ^ rotr(a, 39)
		maj := (a & b) ^ (a & c) ^ (b & c)
		t2 := s0 + maj

		h, g, f, e, d, c, b, a = g, f, e, d+t1, c, b, a, t1+t2
	}

	s.h[0] += a
	s.h[1] += b
	s.h[2] += c
	s.h[3] += d
	s.h[4] += e
	s.h[5] += f
	s.h[6] += g
	s.h[7] += h
}

// Final pads and absorbs the trailing partial block. totalLen is the total
// number of message bytes hashed across this call and every prior Block
// call (the caller tracks this explicitly, matching the edsign.c contract
// where the streaming verifier knows the signed message's total length up
// front). tail must be the 0..127 trailing bytes not yet fed via Block.
func Final(s *State, tail []byte, totalLen uint64) {
	var buf [BlockSize * 2]byte
	n := copy(buf[:], tail)
	buf[n] = 0x80
	n++

	padTo := BlockSize
	if n > BlockSize-16 {
		padTo = BlockSize * 2
	}
	for i := n; i < padTo-16; i++ {
		buf[i] = 0
	}
	bitLen := totalLen * 8
	binary.BigEndian.PutUint64(buf[padTo-8:], bitLen)
	binary.BigEndian.PutUint64(buf[padTo-16:], 0) // message length never exceeds 64 bits

	Block(s, buf[:BlockSize])
	if padTo == BlockSize*2 {
		Block(s, buf[BlockSize:BlockSize*2])
	}
}

// Get extracts length bytes of the digest starting at offset, in big-endian
// byte order, without needing the caller to materialize the full 64-byte
// array first (mirrors sha512_get's partial-extraction signature).
func Get(s *State, offset, length int) []byte {
	var full [Size]byte
	for i := 0; i < 8; i++ {
		binary.BigEndian.PutUint64(full[i*8:], s.h[i])
	}
	out := make([]byte, length)
	copy(out, full[offset:offset+length])
	return out
}

// Sum computes the SHA-512 digest of msg in one call.
func Sum(msg []byte) [Size]byte {
	var s State
	Init(&s)
	full := len(msg) / BlockSize
	for i := 0; i < full; i++ {
		Block(&s, msg[i*BlockSize:(i+1)*BlockSize])
	}
	Final(&s, msg[full*BlockSize:], uint64(len(msg)))
	var out [Size]byte
	copy(out[:], Get(&s, 0, Size))
	return out
}
