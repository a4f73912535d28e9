// Package ed25519 implements EdDSA signing and verification over the
// curve in package edwards, including a streaming verify API
// (VerifyInit/VerifyBlock/VerifyFinal) that hashes the signed message in
// caller-supplied chunks instead of requiring it all in memory at once —
// the capability a constrained secondary ECU needs to verify a root or
// targets document larger than its available RAM. Ported from the
// reference firmware's edsign.c, which splits the same hash computation
// across edsign_verify_init/_block/_final for the same reason.
package ed25519

import (
	"errors"

	"github.com/uptane-partial/libuptiny/edwards"
	"github.com/uptane-partial/libuptiny/sha512"
)

const (
	// PublicKeySize is the size in bytes of an Ed25519 public key.
	PublicKeySize = 32
	// SeedSize is the size in bytes of an Ed25519 private seed.
	SeedSize = 32
	// SignatureSize is the size in bytes of an Ed25519 signature.
	SignatureSize = 64
)

// ErrInvalidSignature is returned by Verify and VerifyFinal when the
// signature does not validate against the given public key and message.
var ErrInvalidSignature = errors.New("ed25519: signature verification failed")

// expandKey hashes a 32-byte seed to 64 bytes and clamps the low half into
// a valid scalar per RFC 8032 §5.1.5: clear the low 3 bits (cofactor
// clearing), clear the top bit, set bit 254 (fix the bit length).
func expandKey(seed [SeedSize]byte) [64]byte {
	h := sha512.Sum(seed[:])
	h[0] &^= 0x07
	h[31] &^= 0x80
	h[31] |= 0x40
	return h
}

// smPack computes scalar*Base and returns its packed encoding.
func smPack(scalar [32]byte) [32]byte {
	return edwards.Pack(edwards.ScalarMult(scalar, edwards.Base))
}

// SecretToPublic derives the public key for a 32-byte seed.
func SecretToPublic(seed [SeedSize]byte) [PublicKeySize]byte {
	expanded := expandKey(seed)
	var scalar [32]byte
	copy(scalar[:], expanded[:32])
	return smPack(scalar)
}

// hashWithPrefix computes SHA-512(prefix || message) and returns it reduced
// mod l, matching hash_with_prefix + hash_message_finalize in edsign.c.
func hashWithPrefix(prefix, message []byte) Scalar {
	var s sha512.State
	sha512.Init(&s)
	buf := append(append([]byte{}, prefix...), message...)
	full := len(buf) / sha512.BlockSize
	for i := 0; i < full; i++ {
		sha512.Block(&s, buf[i*sha512.BlockSize:(i+1)*sha512.BlockSize])
	}
	sha512.Final(&s, buf[full*sha512.BlockSize:], uint64(len(buf)))
	digest := sha512.Get(&s, 0, sha512.Size)
	return ScalarFromBytes(digest)
}

// Sign signs message with the keypair derived from seed and returns the
// detached 64-byte signature (R || S).
func Sign(seed [SeedSize]byte, pub [PublicKeySize]byte, message []byte) [SignatureSize]byte {
	expanded := expandKey(seed)

	k := hashWithPrefix(expanded[32:64], message)
	var sig [SignatureSize]byte
	r := smPack([32]byte(k))
	copy(sig[:32], r[:])

	var prefix [64]byte
	copy(prefix[:32], sig[:32])
	copy(prefix[32:], pub[:])
	z := hashWithPrefix(prefix[:], message)

	var rawExpanded [32]byte
	copy(rawExpanded[:], expanded[:32])
	e := ScalarFromBytes(rawExpanded[:])

	s := ScalarAdd(ScalarMul(z, e), k)
	copy(sig[32:], s[:])
	return sig
}

// Verify checks a detached signature against pub and the whole message at
// once; it is a thin wrapper over the streaming API for callers that
// already hold the complete message in memory.
func Verify(pub [PublicKeySize]byte, sig [SignatureSize]byte, message []byte) error {
	var ctx VerifyContext
	VerifyInit(&ctx, sig, pub)
	VerifyBlock(&ctx, message)
	return VerifyFinal(&ctx)
}

// VerifyContext holds the running hash state of a streaming verification
// in progress. Its zero value is not usable; create one and call
// VerifyInit before VerifyBlock/VerifyFinal.
type VerifyContext struct {
	sha     sha512.State
	pending []byte // <128 bytes buffered, not yet fed to sha.Block
	total   uint64 // total bytes hashed (prefix + message) across all calls
	sig     [SignatureSize]byte
	pub     [PublicKeySize]byte
}

// VerifyInit begins a streaming verification of sig against pub. The
// signed message bytes (none yet) follow via VerifyBlock.
func VerifyInit(ctx *VerifyContext, sig [SignatureSize]byte, pub [PublicKeySize]byte) {
	sha512.Init(&ctx.sha)
	ctx.sig = sig
	ctx.pub = pub
	ctx.pending = ctx.pending[:0]
	ctx.pending = append(ctx.pending, sig[:32]...)
	ctx.pending = append(ctx.pending, pub[:]...)
	ctx.total = 0
	ctx.absorbFullBlocks()
}

func (ctx *VerifyContext) absorbFullBlocks() {
	for len(ctx.pending) >= sha512.BlockSize {
		sha512.Block(&ctx.sha, ctx.pending[:sha512.BlockSize])
		ctx.total += sha512.BlockSize
		ctx.pending = ctx.pending[sha512.BlockSize:]
	}
}

// VerifyBlock feeds the next chunk of the signed message. Chunks may be any
// size; the caller does not need to align them to the hash block size.
func VerifyBlock(ctx *VerifyContext, chunk []byte) {
	ctx.pending = append(ctx.pending, chunk...)
	ctx.absorbFullBlocks()
}

// VerifyFinal finishes the streaming hash and checks the signature. It
// consumes ctx; calling VerifyBlock or VerifyFinal on it again afterward
// has undefined results.
func VerifyFinal(ctx *VerifyContext) error {
	totalLen := ctx.total + uint64(len(ctx.pending))
	sha512.Final(&ctx.sha, ctx.pending, totalLen)
	digest := sha512.Get(&ctx.sha, 0, sha512.Size)
	z := ScalarFromBytes(digest)

	var sScalar [32]byte
	copy(sScalar[:], ctx.sig[32:64])
	lhs := smPack(sScalar)

	a, ok := edwards.Unpack([32]byte(ctx.pub))
	if !ok {
		return ErrInvalidSignature
	}
	var rSig [32]byte
	copy(rSig[:], ctx.sig[:32])
	r, ok := edwards.Unpack(rSig)
	if !ok {
		return ErrInvalidSignature
	}

	zA := edwards.ScalarMult([32]byte(z), a)
	rhsPoint := edwards.Add(zA, r)
	rhs := edwards.Pack(rhsPoint)

	if lhs != rhs {
		return ErrInvalidSignature
	}
	return nil
}
