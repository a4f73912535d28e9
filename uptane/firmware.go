package uptane

import (
	"bytes"

	"github.com/uptane-partial/libuptiny/codec"
	"github.com/uptane-partial/libuptiny/sha512"
)

// VerifyFirmware checks image against target's recorded length and its
// SHA-512 hash, matching crypto.c's hash-then-compare firmware check.
// SHA-512 is the only algorithm this device ever verifies an image
// against (state_supported_hash() in the reference firmware names SHA512
// unconditionally); a target record with no SHA-512 hash at all is a hard
// refusal, not an opportunity to fall back to a weaker digest the target
// happens to also list.
//
// On success this writes the firmware half of the installation-state
// record (name, hash, length) and resets the persisted attack to None,
// mirroring uptane_firmware_confirm's unconditional new_state.attack =
// ATTACK_NONE — the only place the reference firmware clears a previously
// recorded attack.
func (a *Agent) VerifyFirmware(target *Target, image []byte) error {
	if int64(len(image)) != target.Length {
		return a.recordAttack(ErrLengthMismatch, "firmware")
	}
	if !a.host.SupportedHash(HashSHA512) {
		return a.recordAttack(ErrNoSupportedHash, "firmware")
	}
	chosen, ok := target.HashFor(HashSHA512)
	if !ok {
		return a.recordAttack(ErrNoSupportedHash, "firmware")
	}

	sum := sha512.Sum(image)
	if !bytes.Equal(sum[:], chosen.Value) {
		return a.recordAttack(ErrHashMismatch, "firmware")
	}

	st, err := a.store.GetInstallationState()
	if err != nil {
		st = InstallationState{}
	}
	st.TargetName = target.Name
	st.FirmwareHashAlg = HashSHA512
	st.FirmwareHashHex = codec.HexEncode(chosen.Value)
	st.FirmwareLength = target.Length
	st.State = InstallVerified
	st.LastAttack = AttackNone
	st.AttackRole = ""
	st.AttackDetail = ""
	if err := a.store.SetInstallationState(st); err != nil {
		return err
	}

	a.log.Debugf("uptane: firmware verified target=%s length=%d alg=%v", target.Name, target.Length, HashSHA512)
	return nil
}
