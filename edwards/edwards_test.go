package edwards

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uptane-partial/libuptiny/fe"
)

func TestIdentityIsAdditiveNeutral(t *testing.T) {
	id := Identity()
	sum := Add(Base, id)
	require.Equal(t, Pack(Base), Pack(sum))
}

func TestDoubleMatchesSelfAdd(t *testing.T) {
	require.Equal(t, Pack(Double(Base)), Pack(Add(Base, Base)))
}

func TestPackUnpackRoundTrip(t *testing.T) {
	p2 := Double(Base)
	packed := Pack(p2)
	unpacked, ok := Unpack(packed)
	require.True(t, ok)
	require.Equal(t, packed, Pack(unpacked))
}

func TestUnpackRejectsNonCurvePoint(t *testing.T) {
	// y=2 is not the ordinate of any curve point: its candidate
	// x^2 = (y^2-1)/(d*y^2+1) is a non-residue mod p, so Unpack must
	// report ok=false.
	var packed [32]byte
	packed[0] = 2
	_, ok := Unpack(packed)
	require.False(t, ok)
}

func TestScalarMultByZeroIsIdentity(t *testing.T) {
	var zero [32]byte
	r := ScalarMult(zero, Base)
	require.Equal(t, Pack(Identity()), Pack(r))
}

func TestScalarMultByOneIsBase(t *testing.T) {
	var one [32]byte
	one[0] = 1
	r := ScalarMult(one, Base)
	require.Equal(t, Pack(Base), Pack(r))
}

func TestSelectPicksByCondition(t *testing.T) {
	p := Base
	q := Double(Base)
	require.Equal(t, Pack(p), Pack(Select(0, p, q)))
	require.Equal(t, Pack(q), Pack(Select(1, p, q)))
}

func TestProjectAffineRoundTrip(t *testing.T) {
	x, y := affine(Base)
	reprojected := Project(x, y)
	require.Equal(t, Pack(Base), Pack(reprojected))
}

func TestD2IsTwiceD(t *testing.T) {
	// Sanity check that the package-level d2 constant really is 2*D, since
	// add2008hwcd3 depends on this folding being correct.
	require.Equal(t, fe.Add(D, D).Bytes(), d2.Bytes())
}
