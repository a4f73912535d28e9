package uptane_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uptane-partial/libuptiny/codec"
	"github.com/uptane-partial/libuptiny/sha512"
	"github.com/uptane-partial/libuptiny/testutil"
	"github.com/uptane-partial/libuptiny/uptane"
)

func TestIssueManifestProducesVerifiableSignature(t *testing.T) {
	targetsKey := testutil.NthKeyPair(301)
	deviceSeed := testutil.NthKeyPair(9).Seed
	host := testutil.NewDevice("ecu-001", "hw-1", deviceSeed)
	agent, store := newTrustedAgent(t, targetsKey, host)

	image := []byte("firmware-bytes")
	sum := sha512.Sum(image)
	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "firmware.bin", Length: int64(len(image)), SHA512Hex: codec.HexEncode(sum[:]),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})
	require.NoError(t, agent.VerifyFirmware(target, image))

	installedAt := testutil.FixedClock(2025, 6, 1, 12, 0, 0).Now()
	manifest, err := agent.IssueManifest(target, 3, installedAt)
	require.NoError(t, err)
	require.NoError(t, uptane.VerifyManifest(manifest))

	signed := string(manifest.Signed)
	require.Contains(t, signed, `"attacks_detected":""`)
	require.Contains(t, signed, `"ecu_serial":"ecu-001"`)
	require.Contains(t, signed, `"filepath":"firmware.bin"`)
	require.Contains(t, signed, `"sha512":"`+codec.HexEncode(sum[:])+`"`)

	st, err := store.GetInstallationState()
	require.NoError(t, err)
	require.Equal(t, uptane.InstallApplied, st.State)
	require.Equal(t, "firmware.bin", st.TargetName)
}

func TestVerifyManifestRejectsTamperedField(t *testing.T) {
	targetsKey := testutil.NthKeyPair(302)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, _ := newTrustedAgent(t, targetsKey, host)

	image := []byte("firmware-bytes")
	sum := sha512.Sum(image)
	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "firmware.bin", Length: int64(len(image)), SHA512Hex: codec.HexEncode(sum[:]),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})
	require.NoError(t, agent.VerifyFirmware(target, image))

	manifest, err := agent.IssueManifest(target, 1, testutil.FixedClock(2025, 1, 1, 0, 0, 0).Now())
	require.NoError(t, err)

	manifest.Signed = []byte(strings.Replace(string(manifest.Signed), "firmware.bin", "tampered.bin", 1))
	require.Error(t, uptane.VerifyManifest(manifest))
}

// A manifest issued after an attack was recorded against root or targets
// metadata (but with no firmware ever verified) reports that attack in
// attacks_detected rather than silently dropping it.
func TestIssueManifestReportsPersistedAttack(t *testing.T) {
	targetsKey := testutil.NthKeyPair(303)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, store := newTrustedAgent(t, targetsKey, host)

	require.NoError(t, store.SetInstallationState(uptane.InstallationState{
		State:      uptane.InstallFailed,
		LastAttack: uptane.AttackRollback,
	}))

	target := &uptane.Target{Name: "firmware.bin", Length: 4}
	manifest, err := agent.IssueManifest(target, 1, testutil.FixedClock(2025, 1, 1, 0, 0, 0).Now())
	require.NoError(t, err)
	require.Contains(t, string(manifest.Signed), `"attacks_detected":"Root or targets rollback attempted"`)
}

// A successful VerifyFirmware resets any previously persisted attack, so a
// manifest issued afterward reports a clean attacks_detected field —
// mirroring uptane_firmware_confirm's unconditional attack reset.
func TestVerifyFirmwareClearsPriorAttackBeforeManifest(t *testing.T) {
	targetsKey := testutil.NthKeyPair(304)
	host := testutil.NewDevice("ecu-001", "hw-1", testutil.NthKeyPair(9).Seed)
	agent, store := newTrustedAgent(t, targetsKey, host)

	require.NoError(t, store.SetInstallationState(uptane.InstallationState{
		State:      uptane.InstallFailed,
		LastAttack: uptane.AttackHashMismatch,
	}))

	image := []byte("firmware-bytes")
	sum := sha512.Sum(image)
	target := trustedTargetFor(t, agent, targetsKey, testutil.TargetEntry{
		Name: "firmware.bin", Length: int64(len(image)), SHA512Hex: codec.HexEncode(sum[:]),
		ECUSerial: "ecu-001", HardwareID: "hw-1",
	})
	require.NoError(t, agent.VerifyFirmware(target, image))

	manifest, err := agent.IssueManifest(target, 1, testutil.FixedClock(2025, 1, 1, 0, 0, 0).Now())
	require.NoError(t, err)
	require.Contains(t, string(manifest.Signed), `"attacks_detected":""`)
}
