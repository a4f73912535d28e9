package uptane

// HashAlgorithm identifies a digest algorithm a target's hash may be
// recorded under. Only SHA512 is fully supported end to end (the device
// clamps public-key algorithms to ed25519 only); SHA256 is recognized so a
// target record naming both algorithms parses cleanly even when this
// device only trusts one of them.
type HashAlgorithm uint8

const (
	HashUnknown HashAlgorithm = iota
	HashSHA256
	HashSHA512
)

// HashAlgorithmFromString maps a TUF hash-algorithm name to HashAlgorithm,
// case-insensitively, mirroring crypto_str_to_hashtype.
func HashAlgorithmFromString(s string) HashAlgorithm {
	switch lowerASCII(s) {
	case "sha256":
		return HashSHA256
	case "sha512":
		return HashSHA512
	default:
		return HashUnknown
	}
}

func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// HashLen returns the digest length in bytes for a supported algorithm.
func (h HashAlgorithm) HashLen() int {
	switch h {
	case HashSHA256:
		return 32
	case HashSHA512:
		return 64
	default:
		return 0
	}
}

// String renders the TUF hash-algorithm name, mirroring hash_alg_to_string
// for use in the manifest's installed_image.fileinfo.hashes key.
func (h HashAlgorithm) String() string {
	switch h {
	case HashSHA256:
		return "sha256"
	case HashSHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// TargetHash is one (algorithm, digest) pair recorded for a target.
type TargetHash struct {
	Alg   HashAlgorithm
	Value []byte
}

// KeyType identifies a public-key algorithm. Only Ed25519 is implemented;
// the type exists so an unsupported keytype string is a recognized,
// skippable value rather than a parse error (spec §9: metadata with a
// mix of key types must still parse and verify against the types the
// device does support).
type KeyType uint8

const (
	KeyTypeUnknown KeyType = iota
	KeyTypeEd25519
)

// KeyTypeFromString maps a TUF "keytype" string to KeyType.
func KeyTypeFromString(s string) KeyType {
	if lowerASCII(s) == "ed25519" {
		return KeyTypeEd25519
	}
	return KeyTypeUnknown
}

const keyIDLen = 32 // sha256 of the canonical public key, per TUF

// Key is one trusted public key entry from a root document's "keys" map.
type Key struct {
	ID    [keyIDLen]byte
	Type  KeyType
	Value [32]byte // ed25519 public key bytes
}

// Role is one entry of root.json's "roles" map: a threshold and the set
// of key IDs trusted for that role.
type Role struct {
	Threshold int
	KeyIDs    [][keyIDLen]byte
}

// Root is the decoded, verified signed content of a root.json document.
type Root struct {
	Version int
	Expires Timestamp
	Keys    []Key
	RootRole    Role
	TargetsRole Role
}

// Target is one entry from a targets.json document's "targets" map that
// names this device's ECU, with the metadata needed to verify a firmware
// image against it.
type Target struct {
	Name   string
	Length int64
	Hashes []TargetHash
}

// Targets is the decoded, verified signed content of a targets.json
// document, narrowed to the single target entry (if any) that names this
// device's ECU serial under its hardware ID — a constrained secondary
// never needs the rest of the targets map.
type Targets struct {
	Version int
	Expires Timestamp
	Target  *Target // nil if no entry in the document names this ECU
}

// HashFor returns the TargetHash for the requested algorithm, if present.
func (t Target) HashFor(alg HashAlgorithm) (TargetHash, bool) {
	for _, h := range t.Hashes {
		if h.Alg == alg {
			return h, true
		}
	}
	return TargetHash{}, false
}
