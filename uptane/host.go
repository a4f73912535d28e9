package uptane

// Host supplies the device-identity facts the metadata engines need but
// never originate themselves: which ECU and hardware this agent is
// running on, the device's own signing key (for manifest issuance), and
// which firmware hash algorithms this device can actually check. These are
// compile-time or provisioning-time constants on the real firmware; the Go
// port models them as an interface so tests can supply synthetic
// identities without rebuilding anything.
type Host interface {
	// ECUSerial is this device's unique ECU identifier, matched against
	// a targets document's "ecuIdentifiers" map.
	ECUSerial() string
	// HardwareID is this device's hardware identifier; a target entry
	// that names our ECUSerial under a different hardware ID is an
	// attack (spec §7: WrongHardwareID).
	HardwareID() string
	// DeviceKey is this device's own Ed25519 seed, used to sign the
	// manifest the agent issues after a successful install.
	DeviceKey() [32]byte
	// SupportedHash reports whether alg is a hash algorithm this device
	// can verify a firmware image against.
	SupportedHash(alg HashAlgorithm) bool
}

// StateStore is the caller-owned persistence boundary: flash storage,
// a database, or (in tests) memory. The core never touches a filesystem
// or block device directly — every read/write of durable state goes
// through this interface, matching spec §5/§6's callback-based
// persistence model (get_root/set_root/... in the reference firmware).
type StateStore interface {
	GetRoot() (*Root, bool, error)
	SetRoot(*Root) error
	GetTargets() (*Targets, bool, error)
	SetTargets(*Targets) error
	GetInstallationState() (InstallationState, error)
	SetInstallationState(InstallationState) error
}
