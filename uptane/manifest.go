package uptane

import (
	"fmt"

	"github.com/uptane-partial/libuptiny/ed25519"
)

// noTimeserverTime is the placeholder both timeserver fields carry: this
// module has no timeserver client (spec.md's manifest fields name the
// slots but nothing in this pack implements the primary-side time sync
// they'd normally come from), matching manifest.c's own hardcoded
// "1970-01-01T00:00:00Z" in uptane_write_manifest.
const noTimeserverTime = "1970-01-01T00:00:00Z"

// Manifest is the signed ecu_version_manifest this ECU hands back to the
// primary after an install attempt (spec §4.9/§6). Signed is the exact
// JSON object the signature covers, byte for byte — built field by field
// the way uptane_write_manifest does, not re-derived from Go struct tags,
// so the signed bytes are never at the mercy of a JSON marshaler's key
// ordering.
type Manifest struct {
	Signed    []byte
	PublicKey [32]byte
	Signature [64]byte
}

// manifestSigned builds the manifest's "signed" object exactly as
// uptane_write_manifest concatenates it: attacks_detected, ecu_serial,
// installed_image (fileinfo.hashes, fileinfo.length, filepath),
// previous_timeserver_time, timeserver_time, in that field order.
func manifestSigned(attacksDetected, ecuSerial string, st InstallationState) []byte {
	return []byte(fmt.Sprintf(
		`{"attacks_detected":%q,"ecu_serial":%q,"installed_image":{"fileinfo":{"hashes":{%q:%q},"length":%d},"filepath":%q},"previous_timeserver_time":%q,"timeserver_time":%q}`,
		attacksDetected, ecuSerial,
		st.FirmwareHashAlg.String(), st.FirmwareHashHex, st.FirmwareLength,
		st.TargetName,
		noTimeserverTime, noTimeserverTime,
	))
}

// IssueManifest signs a Manifest using the device key the Host supplies
// and records target.Name as the applied target. version appears only in
// the debug log line and installedAt is not used; neither is written into
// the manifest. Call this only after
// VerifyFirmware has accepted the image and the device has actually
// applied it; the manifest's installed_image fields come from the
// firmware record VerifyFirmware persisted, and attacks_detected reports
// whatever attack is currently on file (spec §4.9: set_attack only
// updates the attack field, it never blocks a later call, so a manifest
// can genuinely be the first place an attack gets reported upstream).
func (a *Agent) IssueManifest(target *Target, version int, installedAt Timestamp) (*Manifest, error) {
	st, err := a.store.GetInstallationState()
	if err != nil {
		st = InstallationState{}
	}

	seed := a.host.DeviceKey()
	pub := ed25519.SecretToPublic(seed)
	signed := manifestSigned(attackToString(st.LastAttack), a.host.ECUSerial(), st)
	sig := ed25519.Sign(seed, pub, signed)

	m := &Manifest{
		Signed:    signed,
		PublicKey: pub,
		Signature: sig,
	}

	st.State = InstallApplied
	st.TargetName = target.Name
	if err := a.store.SetInstallationState(st); err != nil {
		return nil, err
	}

	a.log.Debugf("uptane: issued manifest ecu=%s target=%s version=%d", a.host.ECUSerial(), target.Name, version)
	return m, nil
}

// VerifyManifest checks a Manifest's signature against its own claimed
// PublicKey — used by tests and by a primary-side component receiving
// this secondary's manifest, not by the secondary itself.
func VerifyManifest(m *Manifest) error {
	return ed25519.Verify(m.PublicKey, m.Signature, m.Signed)
}
