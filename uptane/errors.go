package uptane

import "errors"

// Sentinel errors for the metadata and firmware verification pipeline.
// Every error a caller might need to distinguish is a package-level value
// rather than a numeric code, per the teacher's error-handling convention
// (massifs/errors.go) and spec's note that no numeric code may cross a
// package boundary undocumented.
var (
	ErrOversizedMetadata   = errors.New("uptane: metadata exceeds configured size limit")
	ErrMalformedJSON       = errors.New("uptane: metadata is not well-formed JSON")
	ErrWrongType           = errors.New("uptane: metadata _type field does not match expected role")
	ErrNoSignatures        = errors.New("uptane: no signatures present for signed role")
	ErrThresholdNotMet     = errors.New("uptane: fewer valid signatures than the role's threshold")
	ErrUnknownKey          = errors.New("uptane: signature references a key not in the trusted key set")
	ErrUnsupportedKeyType  = errors.New("uptane: key type is not supported")
	ErrRootDowngrade       = errors.New("uptane: root version must not decrease across a rotation")
	ErrTargetsRollback     = errors.New("uptane: targets version must not decrease")
	ErrExpired             = errors.New("uptane: metadata has expired")
	ErrInvalidTimestamp    = errors.New("uptane: timestamp is not well-formed (YYYY-MM-DDThh:mm:ssZ)")
	ErrTargetNotFound      = errors.New("uptane: no target entry names this ECU")
	ErrMultipleTargets     = errors.New("uptane: more than one target entry names this ECU")
	ErrWrongHardwareID     = errors.New("uptane: target entry names this ECU under a different hardware ID")
	ErrTooManyKeys         = errors.New("uptane: more keys than the configured quorum pool can hold")
	ErrTooManySignatures   = errors.New("uptane: more signatures than the configured pool can hold")
	ErrPoolExhausted       = errors.New("uptane: fixed-capacity pool has no free slots")
	ErrHashMismatch        = errors.New("uptane: firmware image hash does not match the target's recorded hash")
	ErrLengthMismatch      = errors.New("uptane: firmware image length does not match the target's recorded length")
	ErrNoSupportedHash     = errors.New("uptane: target record has no hash in a hash algorithm this device supports")
	ErrNoRootYet           = errors.New("uptane: no trusted root metadata is installed")
	ErrNoTargetsYet        = errors.New("uptane: no trusted targets metadata is installed")
)
