package uptane_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uptane-partial/libuptiny/codec"
	"github.com/uptane-partial/libuptiny/testutil"
	"github.com/uptane-partial/libuptiny/uptane"
)

func TestUpdateTargetsBeforeAnyRootFails(t *testing.T) {
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	store := testutil.NewMemoryStore()
	agent := uptane.NewAgent(host, store, testutil.FixedClock(2025, 1, 1, 0, 0, 0))

	doc := testutil.NewTargetsBuilder().Sign(testutil.NthKeyPair(1))
	_, err := agent.UpdateTargets(doc)
	require.ErrorIs(t, err, uptane.ErrNoRootYet)
}

func TestUpdateTargetsRejectsExpiredDocument(t *testing.T) {
	targetsKey := testutil.NthKeyPair(401)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, _ := newTrustedAgent(t, targetsKey, host)

	doc := testutil.NewTargetsBuilder().
		Expires("2020-01-01T00:00:00Z").
		WithTarget(testutil.TargetEntry{
			Name: "a.bin", Length: 1, SHA256Hex: codec.HexEncode(make([]byte, 32)),
			ECUSerial: "ecu-001", HardwareID: "hw-1",
		}).
		Sign(targetsKey)

	_, err := agent.UpdateTargets(doc)
	require.ErrorIs(t, err, uptane.ErrExpired)
}

func TestUpdateTargetsRejectsOversizedDocument(t *testing.T) {
	targetsKey := testutil.NthKeyPair(402)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	// Install the trusted root with the default (generous) size limit,
	// then build a second Agent sharing the same store but configured
	// with a byte budget too small for any real targets document.
	_, store := newTrustedAgent(t, targetsKey, host)
	restricted := uptane.NewAgent(host, store, testutil.FixedClock(2025, 1, 1, 0, 0, 0), uptane.WithMaxMetadataBytes(8))

	doc := testutil.NewTargetsBuilder().
		WithTarget(testutil.TargetEntry{
			Name: "a.bin", Length: 1, SHA256Hex: codec.HexEncode(make([]byte, 32)),
			ECUSerial: "ecu-001", HardwareID: "hw-1",
		}).
		Sign(targetsKey)

	_, err := restricted.UpdateTargets(doc)
	require.ErrorIs(t, err, uptane.ErrOversizedMetadata)
}

// A previously persisted attack is a reporting fact, not a lockout: the
// agent still processes a well-formed targets update on its own merits.
func TestPersistedAttackDoesNotBlockSubsequentUpdate(t *testing.T) {
	targetsKey := testutil.NthKeyPair(403)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, store := newTrustedAgent(t, targetsKey, host)

	require.NoError(t, store.SetInstallationState(uptane.InstallationState{
		State:      uptane.InstallFailed,
		LastAttack: uptane.AttackRollback,
	}))

	doc := testutil.NewTargetsBuilder().WithTarget(testutil.TargetEntry{
		Name: "a.bin", Length: 1, SHA256Hex: codec.HexEncode(make([]byte, 32)),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	}).Sign(targetsKey)

	_, err := agent.UpdateTargets(doc)
	require.NoError(t, err)

	st, err := store.GetInstallationState()
	require.NoError(t, err)
	require.Equal(t, uptane.AttackRollback, st.LastAttack)
}
