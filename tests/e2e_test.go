// Package tests holds black-box, whole-Agent scenario tests: each test
// drives uptane.Agent through a realistic sequence (root install, targets
// install, firmware verify, manifest issuance) the way a primary ECU
// would drive a real secondary, rather than exercising one package's
// internals in isolation.
package tests

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uptane-partial/libuptiny/codec"
	"github.com/uptane-partial/libuptiny/sha512"
	"github.com/uptane-partial/libuptiny/testutil"
	"github.com/uptane-partial/libuptiny/uptane"
)

type fixture struct {
	root1, root2, targets1 testutil.KeyPair
	host                   *testutil.Device
	store                  *testutil.MemoryStore
	agent                  *uptane.Agent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		root1:    testutil.NthKeyPair(1),
		root2:    testutil.NthKeyPair(2),
		targets1: testutil.NthKeyPair(3),
		host:     testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed),
		store:    testutil.NewMemoryStore(),
	}
	f.agent = uptane.NewAgent(f.host, f.store, testutil.FixedClock(2025, 6, 1, 0, 0, 0))
	return f
}

func (f *fixture) installRootV1(t *testing.T) *uptane.Root {
	t.Helper()
	doc := testutil.NewRootBuilder().
		WithKeys(f.root1, f.targets1).
		RootRole(1, f.root1).
		TargetsRole(1, f.targets1).
		Sign(f.root1)
	root, err := f.agent.UpdateRoot(doc)
	require.NoError(t, err)
	return root
}

// Scenario: happy path — install root, install targets naming this ECU,
// verify a correct firmware image, and issue a manifest for it.
func TestHappyPathInstall(t *testing.T) {
	f := newFixture(t)
	f.installRootV1(t)

	image := []byte("the-correct-firmware-image")
	sum := sha512.Sum(image)
	targetsDoc := testutil.NewTargetsBuilder().
		WithTarget(testutil.TargetEntry{
			Name: "main-ecu.bin", Length: int64(len(image)),
			SHA512Hex: codec.HexEncode(sum[:]),
			ECUSerial: "ecu-001", HardwareID: "hw-1",
		}).
		Sign(f.targets1)

	targets, err := f.agent.UpdateTargets(targetsDoc)
	require.NoError(t, err)
	require.NotNil(t, targets.Target)

	require.NoError(t, f.agent.VerifyFirmware(targets.Target, image))

	manifest, err := f.agent.IssueManifest(targets.Target, targets.Version, testutil.FixedClock(2025, 6, 1, 0, 5, 0).Now())
	require.NoError(t, err)
	require.NoError(t, uptane.VerifyManifest(manifest))
	require.Contains(t, string(manifest.Signed), `"ecu_serial":"ecu-001"`)
}

// Scenario: a targets.json claiming an older version than already
// installed must be rejected as a rollback attack and persisted as such.
func TestRollbackAttackIsPersisted(t *testing.T) {
	f := newFixture(t)
	f.installRootV1(t)

	entry := testutil.TargetEntry{
		Name: "main-ecu.bin", Length: 4, SHA256Hex: codec.HexEncode(make([]byte, 32)),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	}
	v3 := testutil.NewTargetsBuilder().Version(3).WithTarget(entry).Sign(f.targets1)
	_, err := f.agent.UpdateTargets(v3)
	require.NoError(t, err)

	v2 := testutil.NewTargetsBuilder().Version(2).WithTarget(entry).Sign(f.targets1)
	_, err = f.agent.UpdateTargets(v2)
	require.ErrorIs(t, err, uptane.ErrTargetsRollback)

	// The rollback attack was recorded for the next manifest to report, but
	// it never blocks a later update judged on its own merits.
	v4 := testutil.NewTargetsBuilder().Version(4).WithTarget(entry).Sign(f.targets1)
	_, err = f.agent.UpdateTargets(v4)
	require.NoError(t, err)

	st, err := f.store.GetInstallationState()
	require.NoError(t, err)
	require.Equal(t, uptane.AttackRollback, st.LastAttack)
}

// Scenario: root metadata that has already expired must be rejected.
func TestExpiredRootRejected(t *testing.T) {
	f := newFixture(t)
	doc := testutil.NewRootBuilder().
		Expires("2020-01-01T00:00:00Z").
		WithKeys(f.root1, f.targets1).
		RootRole(1, f.root1).
		TargetsRole(1, f.targets1).
		Sign(f.root1)

	_, err := f.agent.UpdateRoot(doc)
	require.ErrorIs(t, err, uptane.ErrExpired)
}

// Scenario: a root rotation must carry a signature from the previously
// trusted root key, not only the newly introduced one.
func TestKeyRotationRequiresOldKeySignature(t *testing.T) {
	f := newFixture(t)
	f.installRootV1(t)

	rotated := testutil.NewRootBuilder().
		Version(2).
		WithKeys(f.root2, f.targets1).
		RootRole(1, f.root2).
		TargetsRole(1, f.targets1).
		Sign(f.root2) // missing f.root1's signature

	_, err := f.agent.UpdateRoot(rotated)
	require.ErrorIs(t, err, uptane.ErrThresholdNotMet)

	rotatedOK := testutil.NewRootBuilder().
		Version(2).
		WithKeys(f.root2, f.targets1).
		RootRole(1, f.root2).
		TargetsRole(1, f.targets1).
		Sign(f.root1, f.root2)

	root, err := f.agent.UpdateRoot(rotatedOK)
	require.NoError(t, err)
	require.Equal(t, 2, root.Version)
}

// Scenario: a target entry naming this ECU's serial under a different
// hardware ID is a distinct attack from "no target for this ECU".
func TestWrongHardwareIDIsDistinctFromNoTarget(t *testing.T) {
	f := newFixture(t)
	f.installRootV1(t)

	wrongHW := testutil.NewTargetsBuilder().
		WithTarget(testutil.TargetEntry{
			Name: "a.bin", Length: 1, SHA256Hex: codec.HexEncode(make([]byte, 32)),
			ECUSerial: "ecu-001", HardwareID: "not-hw-1",
		}).
		Sign(f.targets1)
	_, err := f.agent.UpdateTargets(wrongHW)
	require.ErrorIs(t, err, uptane.ErrWrongHardwareID)
}

// Scenario: a firmware image whose bytes don't match the target's
// recorded hash is rejected even though the metadata verified cleanly.
func TestImageTamperIsDetected(t *testing.T) {
	f := newFixture(t)
	f.installRootV1(t)

	image := []byte("genuine-image")
	sum := sha512.Sum(image)
	targetsDoc := testutil.NewTargetsBuilder().
		WithTarget(testutil.TargetEntry{
			Name: "a.bin", Length: int64(len(image)),
			SHA512Hex: codec.HexEncode(sum[:]),
			ECUSerial: "ecu-001", HardwareID: "hw-1",
		}).
		Sign(f.targets1)
	targets, err := f.agent.UpdateTargets(targetsDoc)
	require.NoError(t, err)

	tampered := append([]byte{}, image...)
	tampered[0] ^= 0xff
	err = f.agent.VerifyFirmware(targets.Target, tampered)
	require.ErrorIs(t, err, uptane.ErrHashMismatch)
}
