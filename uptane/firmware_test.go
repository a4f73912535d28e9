package uptane_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uptane-partial/libuptiny/codec"
	"github.com/uptane-partial/libuptiny/sha512"
	"github.com/uptane-partial/libuptiny/testutil"
	"github.com/uptane-partial/libuptiny/uptane"
)

func trustedTargetFor(t *testing.T, agent *uptane.Agent, targetsKey testutil.KeyPair, entry testutil.TargetEntry) *uptane.Target {
	t.Helper()
	doc := testutil.NewTargetsBuilder().WithTarget(entry).Sign(targetsKey)
	targets, err := agent.UpdateTargets(doc)
	require.NoError(t, err)
	require.NotNil(t, targets.Target)
	return targets.Target
}

func TestVerifyFirmwareAcceptsMatchingImage(t *testing.T) {
	targetsKey := testutil.NthKeyPair(201)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, _ := newTrustedAgent(t, targetsKey, host)

	image := []byte("correct-firmware")
	sum := sha512.Sum(image)
	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "a.bin", Length: int64(len(image)), SHA512Hex: codec.HexEncode(sum[:]),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})

	require.NoError(t, agent.VerifyFirmware(target, image))
}

// The literal §8 scenario 1 vector: sha512("hello uptane!!\n").
func TestVerifyFirmwareAcceptsScenario1Vector(t *testing.T) {
	targetsKey := testutil.NthKeyPair(206)
	host := testutil.NewDevice("ecu-A", "hw-A", testutil.NthKeyPair(9).Seed)
	agent, _ := newTrustedAgent(t, targetsKey, host)

	image := []byte("hello uptane!!\n")
	const wantHex = "7dbae4c36a2494b731a9239911d3085d53d3e400886edb4ae2b9b78f40bda446649e83ba2d81653f614cc66f5dd5d4dbd95afba854f148afbfae48d0ff4cc38a"
	sum := sha512.Sum(image)
	require.Equal(t, wantHex, codec.HexEncode(sum[:]))

	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "fw.bin", Length: int64(len(image)), SHA512Hex: wantHex,
		ECUSerial: "ecu-A", HardwareID: "hw-A",
	})

	require.NoError(t, agent.VerifyFirmware(target, image))
}

func TestVerifyFirmwareRejectsLengthMismatch(t *testing.T) {
	targetsKey := testutil.NthKeyPair(202)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, _ := newTrustedAgent(t, targetsKey, host)

	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "a.bin", Length: 100, SHA512Hex: codec.HexEncode(make([]byte, 64)),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})

	err := agent.VerifyFirmware(target, []byte("too-short"))
	require.ErrorIs(t, err, uptane.ErrLengthMismatch)
}

func TestVerifyFirmwareRejectsHashMismatch(t *testing.T) {
	targetsKey := testutil.NthKeyPair(203)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, _ := newTrustedAgent(t, targetsKey, host)

	image := []byte("some-image-bytes")
	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "a.bin", Length: int64(len(image)), SHA512Hex: codec.HexEncode(make([]byte, 64)),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})

	err := agent.VerifyFirmware(target, image)
	require.ErrorIs(t, err, uptane.ErrHashMismatch)
}

// A target that records only a SHA-256 hash has nothing this device can
// verify against: SHA-512 is the sole algorithm it checks, not a
// preference among several.
func TestVerifyFirmwareRejectsWhenNoSupportedHash(t *testing.T) {
	targetsKey := testutil.NthKeyPair(204)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, _ := newTrustedAgent(t, targetsKey, host)

	image := []byte("image")
	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "a.bin", Length: int64(len(image)), SHA256Hex: codec.HexEncode(make([]byte, 32)),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})

	err := agent.VerifyFirmware(target, image)
	require.ErrorIs(t, err, uptane.ErrNoSupportedHash)
}

// A device that has disabled SHA-512 support entirely refuses every
// target, even one that does carry a SHA-512 hash.
func TestVerifyFirmwareRejectsWhenHostLacksSHA512(t *testing.T) {
	targetsKey := testutil.NthKeyPair(205)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed).
		WithoutHash(uptane.HashSHA512)
	agent, _ := newTrustedAgent(t, targetsKey, host)

	image := []byte("image")
	sum := sha512.Sum(image)
	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "a.bin", Length: int64(len(image)), SHA512Hex: codec.HexEncode(sum[:]),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})

	err := agent.VerifyFirmware(target, image)
	require.ErrorIs(t, err, uptane.ErrNoSupportedHash)
}

// A failed firmware verification records an attack, but a later targets
// update is judged on its own merits rather than being refused outright.
func TestVerifyFirmwareFailureDoesNotBlockFurtherUpdates(t *testing.T) {
	targetsKey := testutil.NthKeyPair(207)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, store := newTrustedAgent(t, targetsKey, host)

	image := []byte("image-bytes")
	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "a.bin", Length: int64(len(image)), SHA512Hex: codec.HexEncode(make([]byte, 64)),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})
	err := agent.VerifyFirmware(target, image)
	require.ErrorIs(t, err, uptane.ErrHashMismatch)

	st, err := store.GetInstallationState()
	require.NoError(t, err)
	require.Equal(t, uptane.AttackHashMismatch, st.LastAttack)

	next := testutil.NewTargetsBuilder().Version(2).WithTarget(testutil.TargetEntry{
		Name: "b.bin", Length: 1, SHA512Hex: codec.HexEncode(make([]byte, 64)),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	}).Sign(targetsKey)
	_, err = agent.UpdateTargets(next)
	require.NoError(t, err)
}
