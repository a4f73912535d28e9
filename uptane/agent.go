package uptane

import (
	"errors"
	"fmt"
)

// Agent is the single coordinating type a caller builds one of per
// device: it owns no I/O itself, delegating persistence to a StateStore,
// time to a Clock, and device identity to a Host, and drives root
// verification, targets verification, firmware verification, and
// manifest issuance through those three collaborators. This mirrors the
// reference firmware's top-level uptane_process_* entry points, which are
// free functions closing over a single global device context; Agent just
// makes that context an explicit, injectable value.
type Agent struct {
	host  Host
	store StateStore
	clock Clock
	cfg   Config
	log   Logger
}

// NewAgent builds an Agent from its three collaborators plus any Config
// options (pool sizes, logger, size limits).
func NewAgent(host Host, store StateStore, clock Clock, opts ...Option) *Agent {
	cfg := NewConfig(opts...)
	return &Agent{host: host, store: store, clock: clock, cfg: cfg, log: cfg.log}
}

// attackCodeForError classifies a verification error into the persisted
// attack taxonomy of spec §7. Errors with no attack significance (a
// missing store entry, ErrPoolExhausted, ErrNoSupportedHash) map to
// AttackNone and are not persisted as an attack; a full key table or
// signature pool (ErrTooManyKeys, ErrTooManySignatures) counts as a
// threshold failure.
func attackCodeForError(err error) AttackCode {
	switch {
	case errors.Is(err, ErrRootDowngrade), errors.Is(err, ErrTargetsRollback):
		return AttackRollback
	case errors.Is(err, ErrExpired):
		return AttackExpiredMetadata
	case errors.Is(err, ErrThresholdNotMet), errors.Is(err, ErrUnknownKey),
		errors.Is(err, ErrUnsupportedKeyType), errors.Is(err, ErrNoSignatures),
		errors.Is(err, ErrTooManyKeys), errors.Is(err, ErrTooManySignatures):
		return AttackKeyRotationFailure
	case errors.Is(err, ErrWrongHardwareID):
		return AttackWrongHardwareID
	case errors.Is(err, ErrMultipleTargets):
		return AttackMultipleTargets
	case errors.Is(err, ErrHashMismatch):
		return AttackHashMismatch
	case errors.Is(err, ErrLengthMismatch):
		return AttackLengthMismatch
	case errors.Is(err, ErrOversizedMetadata):
		return AttackOversizedMetadata
	case errors.Is(err, ErrMalformedJSON), errors.Is(err, ErrWrongType), errors.Is(err, ErrInvalidTimestamp):
		return AttackMalformedMetadata
	default:
		return AttackNone
	}
}

// recordAttack persists an attack classification for err (if any) against
// role before returning err unchanged, so the caller can simply `return
// a.recordAttack(err, "root")`.
func (a *Agent) recordAttack(err error, role string) error {
	if err == nil {
		return nil
	}
	code := attackCodeForError(err)
	if code == AttackNone {
		return err
	}
	a.logAttack(code, role, err.Error())
	st, getErr := a.store.GetInstallationState()
	if getErr != nil {
		st = InstallationState{}
	}
	st.State = InstallFailed
	st.LastAttack = code
	st.AttackRole = role
	st.AttackDetail = err.Error()
	_ = a.store.SetInstallationState(st)
	return err
}

// UpdateRoot verifies data as the next root.json in this device's chain
// of trust and, on success, persists it. oldRoot (if any) is read from the
// StateStore; this is the very first root installed when the store holds
// none yet. A rejected update records its attack classification (if any)
// against the persisted installation state for the next manifest to
// report, but — matching uptane_parse_root, which has no such latch —
// never blocks a subsequent call of any role from being processed on its
// own merits.
func (a *Agent) UpdateRoot(data []byte) (*Root, error) {
	oldRoot, hasOld, err := a.store.GetRoot()
	if err != nil {
		return nil, err
	}
	if !hasOld {
		oldRoot = nil
	}

	newRoot, err := ParseRoot(data, oldRoot, a.cfg)
	if err != nil {
		return nil, a.recordAttack(err, "root")
	}
	if !a.clock.Now().Before(newRoot.Expires) {
		return nil, a.recordAttack(ErrExpired, "root")
	}
	if err := a.store.SetRoot(newRoot); err != nil {
		return nil, err
	}
	a.log.Debugf("uptane: installed root version=%d", newRoot.Version)
	return newRoot, nil
}

// UpdateTargets verifies data as the next targets.json against the
// currently trusted root and, on success, persists the narrowed Targets
// record (spec §4.7/§4.8). ErrTargetNotFound is returned (but not
// persisted as an attack) when the document is otherwise valid but names
// no target for this ECU — that is an expected, benign outcome during a
// campaign that does not target this device.
func (a *Agent) UpdateTargets(data []byte) (*Targets, error) {
	root, hasRoot, err := a.store.GetRoot()
	if err != nil {
		return nil, err
	}
	if !hasRoot {
		return nil, ErrNoRootYet
	}
	if len(data) > a.cfg.maxMetadataBytes {
		return nil, a.recordAttack(ErrOversizedMetadata, "targets")
	}

	tp := NewTargetsParser(a.cfg)
	if err := tp.Feed(data, root, a.host, a.cfg); err != nil {
		return nil, a.recordAttack(err, "targets")
	}
	if !tp.Done() {
		return nil, a.recordAttack(fmt.Errorf("%w: truncated targets document", ErrMalformedJSON), "targets")
	}

	trustedKeys := keysForRole(root.Keys, root.TargetsRole)
	valid := countValidSignatures(tp.buf, tp.signed, tp.numSigKeyIdxs, tp.numSigValues, trustedKeys)
	if valid < root.TargetsRole.Threshold {
		return nil, a.recordAttack(ErrThresholdNotMet, "targets")
	}

	if !a.clock.Now().Before(tp.out.Expires) {
		return nil, a.recordAttack(ErrExpired, "targets")
	}

	oldTargets, hasOldTargets, err := a.store.GetTargets()
	if err != nil {
		return nil, err
	}
	if hasOldTargets && tp.out.Version < oldTargets.Version {
		return nil, a.recordAttack(ErrTargetsRollback, "targets")
	}

	out := tp.out
	if err := a.store.SetTargets(&out); err != nil {
		return nil, err
	}
	a.log.Debugf("uptane: installed targets version=%d target_found=%v", out.Version, out.Target != nil)

	if out.Target == nil {
		return &out, ErrTargetNotFound
	}
	return &out, nil
}
