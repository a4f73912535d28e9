// Package testutil provides synthetic Host/StateStore/Clock
// implementations and signed-document builders for exercising the uptane
// package without a real device or network peer — the Go equivalent of
// the reference firmware's test fixtures in its own unit test tree.
package testutil

import (
	"fmt"
	"strings"

	"github.com/uptane-partial/libuptiny/codec"
	"github.com/uptane-partial/libuptiny/ed25519"
	"github.com/uptane-partial/libuptiny/uptane"
)

// MemoryStore is an in-memory uptane.StateStore, safe for single-goroutine
// test use.
type MemoryStore struct {
	root        *uptane.Root
	hasRoot     bool
	targets     *uptane.Targets
	hasTargets  bool
	install     uptane.InstallationState
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) GetRoot() (*uptane.Root, bool, error) { return m.root, m.hasRoot, nil }
func (m *MemoryStore) SetRoot(r *uptane.Root) error {
	m.root, m.hasRoot = r, true
	return nil
}
func (m *MemoryStore) GetTargets() (*uptane.Targets, bool, error) {
	return m.targets, m.hasTargets, nil
}
func (m *MemoryStore) SetTargets(t *uptane.Targets) error {
	m.targets, m.hasTargets = t, true
	return nil
}
func (m *MemoryStore) GetInstallationState() (uptane.InstallationState, error) {
	return m.install, nil
}
func (m *MemoryStore) SetInstallationState(s uptane.InstallationState) error {
	m.install = s
	return nil
}

// Device is a synthetic uptane.Host plus the Ed25519 seed behind its
// DeviceKey, so a test can sign a manifest with the same key the Host
// reports.
type Device struct {
	ecuSerial  string
	hardwareID string
	seed       [32]byte
	hashes     map[uptane.HashAlgorithm]bool
}

// NewDevice builds a Device that reports support for both SHA512 and
// SHA256 firmware hashes.
func NewDevice(ecuSerial, hardwareID string, seed [32]byte) *Device {
	return &Device{
		ecuSerial:  ecuSerial,
		hardwareID: hardwareID,
		seed:       seed,
		hashes: map[uptane.HashAlgorithm]bool{
			uptane.HashSHA512: true,
			uptane.HashSHA256: true,
		},
	}
}

func (d *Device) ECUSerial() string                            { return d.ecuSerial }
func (d *Device) HardwareID() string                           { return d.hardwareID }
func (d *Device) DeviceKey() [32]byte                           { return d.seed }
func (d *Device) SupportedHash(alg uptane.HashAlgorithm) bool   { return d.hashes[alg] }

// WithoutHash disables support for alg, for exercising ErrNoSupportedHash.
func (d *Device) WithoutHash(alg uptane.HashAlgorithm) *Device {
	d.hashes[alg] = false
	return d
}

// FixedClock wraps a literal timestamp as an uptane.Clock.
func FixedClock(year, month, day, hour, minute, second int32) uptane.FixedClock {
	return uptane.FixedClock(uptane.Timestamp{
		Year: year, Month: month, Day: day, Hour: hour, Minute: minute, Second: second,
	})
}

// KeyPair is a generated Ed25519 identity used to sign fixture documents.
type KeyPair struct {
	Seed   [32]byte
	Public [32]byte
	KeyID  [32]byte // the public key bytes themselves, standing in for a real key id
}

// NewKeyPair derives a KeyPair from a 32-byte seed (tests typically use a
// small counter-derived seed rather than real randomness, for
// reproducibility).
func NewKeyPair(seed [32]byte) KeyPair {
	pub := ed25519.SecretToPublic(seed)
	return KeyPair{Seed: seed, Public: pub, KeyID: pub}
}

func seedFromByte(b byte) [32]byte {
	var s [32]byte
	for i := range s {
		s[i] = b
	}
	return s
}

// NthKeyPair returns a deterministic, distinct KeyPair for index n, so
// tests can build several named keys (root1, root2, targets1, ...)
// without hand-writing seeds.
func NthKeyPair(n int) KeyPair {
	return NewKeyPair(seedFromByte(byte(n + 1)))
}

// RootBuilder assembles and signs a root.json-shaped document.
type RootBuilder struct {
	version          int
	expires          string
	keys             []KeyPair
	rootThreshold    int
	rootKeys         []KeyPair
	targetsThreshold int
	targetsKeys      []KeyPair
}

func NewRootBuilder() *RootBuilder {
	return &RootBuilder{version: 1, expires: "2030-01-01T00:00:00Z", rootThreshold: 1, targetsThreshold: 1}
}

func (b *RootBuilder) Version(v int) *RootBuilder     { b.version = v; return b }
func (b *RootBuilder) Expires(ts string) *RootBuilder { b.expires = ts; return b }

// WithKeys registers every key in keys under the document's "keys" map.
func (b *RootBuilder) WithKeys(keys ...KeyPair) *RootBuilder {
	b.keys = append(b.keys, keys...)
	return b
}

// RootRole sets the root role's threshold and which keys are trusted for
// it (these need not all be in WithKeys, though normally they are).
func (b *RootBuilder) RootRole(threshold int, keys ...KeyPair) *RootBuilder {
	b.rootThreshold, b.rootKeys = threshold, keys
	return b
}

// TargetsRole sets the targets role's threshold and trusted keys.
func (b *RootBuilder) TargetsRole(threshold int, keys ...KeyPair) *RootBuilder {
	b.targetsThreshold, b.targetsKeys = threshold, keys
	return b
}

func keyidsJSON(keys []KeyPair) string {
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%q", codec.HexEncode(k.KeyID[:])))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (b *RootBuilder) signedBody() string {
	var keyEntries []string
	for _, k := range b.keys {
		keyEntries = append(keyEntries, fmt.Sprintf(
			`%q:{"keytype":"ed25519","keyval":{"public":%q}}`,
			codec.HexEncode(k.KeyID[:]), codec.HexEncode(k.Public[:])))
	}
	return fmt.Sprintf(
		`{"_type":"Root","expires":%q,"version":%d,"keys":{%s},"roles":{"root":{"threshold":%d,"keyids":%s},"targets":{"threshold":%d,"keyids":%s}}}`,
		b.expires, b.version, strings.Join(keyEntries, ","),
		b.rootThreshold, keyidsJSON(b.rootKeys),
		b.targetsThreshold, keyidsJSON(b.targetsKeys),
	)
}

// Sign renders the final root.json document, signed by every given
// signer. A signer need not be one of the keys registered via WithKeys —
// a key-rotation test signs the new document with the old root key too,
// and that key is typically not part of the new document's own "keys"
// map at all.
func (b *RootBuilder) Sign(signers ...KeyPair) []byte {
	return envelope(b.signedBody(), signers...)
}

func envelope(signed string, signers ...KeyPair) []byte {
	var sigs []string
	for _, k := range signers {
		sig := ed25519.Sign(k.Seed, k.Public, []byte(signed))
		sigs = append(sigs, fmt.Sprintf(
			`{"keyid":%q,"method":"ed25519","sig":%q}`,
			codec.HexEncode(k.KeyID[:]), codec.Base64Encode(sig[:])))
	}
	doc := fmt.Sprintf(`{"signatures":[%s],"signed":%s}`, strings.Join(sigs, ","), signed)
	return []byte(doc)
}

// TargetEntry is one entry for TargetsBuilder.WithTarget.
type TargetEntry struct {
	Name        string
	Length      int64
	SHA512Hex   string
	SHA256Hex   string
	ECUSerial   string // "" to omit ecuIdentifiers entirely
	HardwareID  string
}

// TargetsBuilder assembles and signs a targets.json-shaped document.
type TargetsBuilder struct {
	version int
	expires string
	targets []TargetEntry
}

func NewTargetsBuilder() *TargetsBuilder {
	return &TargetsBuilder{version: 1, expires: "2030-01-01T00:00:00Z"}
}

func (b *TargetsBuilder) Version(v int) *TargetsBuilder     { b.version = v; return b }
func (b *TargetsBuilder) Expires(ts string) *TargetsBuilder { b.expires = ts; return b }
func (b *TargetsBuilder) WithTarget(t TargetEntry) *TargetsBuilder {
	b.targets = append(b.targets, t)
	return b
}

func (b *TargetsBuilder) signedBody() string {
	var entries []string
	for _, t := range b.targets {
		var hashParts []string
		if t.SHA512Hex != "" {
			hashParts = append(hashParts, fmt.Sprintf(`"sha512":%q`, t.SHA512Hex))
		}
		if t.SHA256Hex != "" {
			hashParts = append(hashParts, fmt.Sprintf(`"sha256":%q`, t.SHA256Hex))
		}
		custom := `{}`
		if t.ECUSerial != "" {
			custom = fmt.Sprintf(
				`{"ecuIdentifiers":{%q:{"hardwareId":%q}}}`,
				t.ECUSerial, t.HardwareID)
		}
		entries = append(entries, fmt.Sprintf(
			`%q:{"custom":%s,"hashes":{%s},"length":%d}`,
			t.Name, custom, strings.Join(hashParts, ","), t.Length))
	}
	return fmt.Sprintf(
		`{"_type":"Targets","expires":%q,"version":%d,"targets":{%s}}`,
		b.expires, b.version, strings.Join(entries, ","))
}

// Sign renders the final targets.json document, signed by every given
// signer.
func (b *TargetsBuilder) Sign(signers ...KeyPair) []byte {
	return envelope(b.signedBody(), signers...)
}
