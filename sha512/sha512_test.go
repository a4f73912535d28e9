package sha512

import (
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumMatchesStandardLibraryEmpty(t *testing.T) {
	want := sha512.Sum512(nil)
	got := Sum(nil)
	require.Equal(t, want[:], got[:])
}

func TestSumMatchesStandardLibraryShortMessage(t *testing.T) {
	msg := []byte("uptane partial verification")
	want := sha512.Sum512(msg)
	got := Sum(msg)
	require.Equal(t, want[:], got[:])
}

func TestSumMatchesStandardLibraryAcrossBlockBoundary(t *testing.T) {
	msg := make([]byte, BlockSize*3+17)
	for i := range msg {
		msg[i] = byte(i * 7)
	}
	want := sha512.Sum512(msg)
	got := Sum(msg)
	require.Equal(t, want[:], got[:])
}

func TestBlockThenFinalMatchesSum(t *testing.T) {
	msg := make([]byte, BlockSize*2+40)
	for i := range msg {
		msg[i] = byte(i)
	}

	var s State
	Init(&s)
	Block(&s, msg[:BlockSize])
	Block(&s, msg[BlockSize:BlockSize*2])
	Final(&s, msg[BlockSize*2:], uint64(len(msg)))

	want := sha512.Sum512(msg)
	require.Equal(t, want[:], Get(&s, 0, Size))
}

func TestGetExtractsPartialDigest(t *testing.T) {
	full := Sum([]byte("partial extraction"))
	var s State
	Init(&s)
	Final(&s, []byte("partial extraction"), uint64(len("partial extraction")))
	require.Equal(t, full[8:24], Get(&s, 8, 16))
}
