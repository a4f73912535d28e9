package uptane

// AttackCode enumerates the persistent attack kinds spec §7 requires the
// agent to distinguish in installation state, plus None for "no attack
// detected". Kept as a small hand-written enum with a String method
// (the teacher's codebase does not use go:generate for its stringers, so
// neither does this one) rather than bare ints, so a logged or persisted
// attack code is self-describing.
type AttackCode uint8

const (
	AttackNone AttackCode = iota
	AttackRollback
	AttackExpiredMetadata
	AttackKeyRotationFailure
	AttackWrongHardwareID
	AttackMultipleTargets
	AttackHashMismatch
	AttackLengthMismatch
	AttackOversizedMetadata
	AttackMalformedMetadata
)

func (a AttackCode) String() string {
	switch a {
	case AttackNone:
		return "none"
	case AttackRollback:
		return "rollback"
	case AttackExpiredMetadata:
		return "expired_metadata"
	case AttackKeyRotationFailure:
		return "key_rotation_failure"
	case AttackWrongHardwareID:
		return "wrong_hardware_id"
	case AttackMultipleTargets:
		return "multiple_targets"
	case AttackHashMismatch:
		return "hash_mismatch"
	case AttackLengthMismatch:
		return "length_mismatch"
	case AttackOversizedMetadata:
		return "oversized_metadata"
	case AttackMalformedMetadata:
		return "malformed_metadata"
	default:
		return "unknown_attack"
	}
}

// InstallState enumerates where this ECU is in the install lifecycle for
// its currently targeted image.
type InstallState uint8

const (
	InstallNone InstallState = iota
	InstallPending
	InstallVerified
	InstallApplied
	InstallFailed
)

// InstallationState is the persisted record of this device's progress
// toward installing its current target, plus the most recent attack (if
// any) observed while getting there — spec §3's Installation state /
// Ownership record. FirmwareHashAlg/FirmwareHashHex/FirmwareLength are
// written once by a successful VerifyFirmware call (mirroring
// uptane_firmware_confirm's new_state) and read back by IssueManifest to
// build the manifest's installed_image field.
type InstallationState struct {
	State            InstallState
	TargetName       string
	FirmwareHashAlg  HashAlgorithm
	FirmwareHashHex  string
	FirmwareLength   int64
	LastAttack       AttackCode
	AttackRole       string
	AttackDetail     string
}

// attackToString renders code the way the reference firmware's
// attack_to_string does for the manifest's attacks_detected field: a
// human-readable sentence, or the empty string for AttackNone.
func attackToString(code AttackCode) string {
	switch code {
	case AttackNone:
		return ""
	case AttackRollback:
		return "Root or targets rollback attempted"
	case AttackExpiredMetadata:
		return "Root or targets metadata has expired"
	case AttackKeyRotationFailure:
		return "Failed threshold for root or targets metadata"
	case AttackWrongHardwareID:
		return "Target entry names this ECU under a different hardware ID"
	case AttackMultipleTargets:
		return "More than one target entry names this ECU"
	case AttackHashMismatch:
		return "Firmware image hash verification failed"
	case AttackLengthMismatch:
		return "Firmware image length mismatch"
	case AttackOversizedMetadata:
		return "Root or targets metadata size exceeds the limit"
	case AttackMalformedMetadata:
		return "Root or targets metadata is malformed"
	default:
		return "Unknown"
	}
}
