package uptane

import (
	"fmt"

	"github.com/uptane-partial/libuptiny/codec"
	"github.com/uptane-partial/libuptiny/jsontoken"
	"github.com/uptane-partial/libuptiny/pool"
)

// ParseRoot verifies and decodes a root.json document against the
// previously-trusted root (oldRoot may be nil only for the very first
// root this device ever installs). It requires the document to be signed
// by a threshold of oldRoot's root keys (proving whoever issued this
// rotation held the old trust anchor) AND by a threshold of its own new
// root keys (proving the new key set is self-consistent) — the same
// two-pass check root.c performs across its two calls to
// uptane_parse_signatures, once against old_root and once against
// out_root.
//
// The whole document is tokenized in one call rather than fed
// incrementally: root.c itself calls jsmn_parse once over the complete
// buffer (only targets.c streams), and root documents are small enough
// that buffering one in full is the correct tradeoff here too.
func ParseRoot(data []byte, oldRoot *Root, cfg Config) (*Root, error) {
	if len(data) > cfg.maxMetadataBytes {
		return nil, ErrOversizedMetadata
	}

	tokenArena := pool.New[jsontoken.Token](cfg.tokenPoolSize)
	tokens := tokenArena.Slots()
	var p jsontoken.Parser
	jsontoken.Init(&p)
	n, err := jsontoken.Parse(&p, data, tokens)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}
	tokens = tokens[:n]
	if n == 0 || tokens[0].Type != jsontoken.Object {
		return nil, fmt.Errorf("%w: expected top-level object", ErrMalformedJSON)
	}

	var sigArrayIdx = -1
	var signed signedSpan = signedSpan{-1, -1}

	size := tokens[0].Size / 2
	pos := 1
	for i := 0; i < size; i++ {
		name := string(data[tokens[pos].Start:tokens[pos].End])
		pos++
		switch name {
		case "signatures":
			sigArrayIdx = pos
			pos = skipToken(tokens, pos)
		case "signed":
			signed = signedSpan{tokens[pos].Start, tokens[pos].End}
			pos = skipToken(tokens, pos)
		default:
			pos = skipToken(tokens, pos)
		}
	}

	if sigArrayIdx < 0 {
		return nil, ErrNoSignatures
	}
	if signed.start < 0 {
		return nil, fmt.Errorf("%w: missing signed field", ErrMalformedJSON)
	}

	if oldRoot != nil {
		oldRootKeys := keysForRole(oldRoot.Keys, oldRoot.RootRole)
		keyIdxs, sigs, err := parseSignatures(data, tokens, sigArrayIdx, oldRootKeys, cfg.maxSignatures)
		if err != nil {
			return nil, err
		}
		if countValidSignatures(data, signed, keyIdxs, sigs, oldRootKeys) < oldRoot.RootRole.Threshold {
			return nil, ErrThresholdNotMet
		}
	}

	newRoot, err := parseRootSigned(data, tokens, signed, cfg)
	if err != nil {
		return nil, err
	}

	if oldRoot != nil && newRoot.Version < oldRoot.Version {
		return nil, ErrRootDowngrade
	}

	newRootKeys := keysForRole(newRoot.Keys, newRoot.RootRole)
	keyIdxs, sigs, err := parseSignatures(data, tokens, sigArrayIdx, newRootKeys, cfg.maxSignatures)
	if err != nil {
		return nil, err
	}
	if countValidSignatures(data, signed, keyIdxs, sigs, newRootKeys) < newRoot.RootRole.Threshold {
		return nil, ErrThresholdNotMet
	}

	return newRoot, nil
}

// keysForRole narrows a key set to exactly the keys a role's keyids list
// names, so a signature from a key that exists in the document's "keys"
// map but isn't trusted for this role can never count toward its
// threshold.
func keysForRole(keys []Key, role Role) []Key {
	var out []Key
	for _, id := range role.KeyIDs {
		for _, k := range keys {
			if k.ID == id {
				out = append(out, k)
				break
			}
		}
	}
	return out
}

// parseRootSigned decodes the "signed" object's fields: _type, expires,
// version, keys, roles — ported from root_signed.c's uptane_part_root_signed, keys
// parsing (parse_keys/parse_keyval) and roles parsing (parse_roles/parse_role).
func parseRootSigned(data []byte, tokens []jsontoken.Token, signed signedSpan, cfg Config) (*Root, error) {
	idx := indexAt(tokens, signed.start)
	if idx < 0 || tokens[idx].Type != jsontoken.Object {
		return nil, fmt.Errorf("%w: signed is not an object", ErrMalformedJSON)
	}

	root := &Root{}
	size := tokens[idx].Size / 2
	pos := idx + 1
	for i := 0; i < size; i++ {
		name := string(data[tokens[pos].Start:tokens[pos].End])
		pos++
		switch name {
		case "_type":
			if string(data[tokens[pos].Start:tokens[pos].End]) != "Root" {
				return nil, ErrWrongType
			}
			pos++
		case "expires":
			ts, ok := ParseTimestamp(string(data[tokens[pos].Start:tokens[pos].End]))
			if !ok {
				return nil, ErrInvalidTimestamp
			}
			root.Expires = ts
			pos++
		case "version":
			v, ok := decDigits(string(data[tokens[pos].Start:tokens[pos].End]))
			if !ok {
				return nil, fmt.Errorf("%w: root version is not an integer", ErrMalformedJSON)
			}
			root.Version = int(v)
			pos++
		case "keys":
			keys, next, err := parseKeys(data, tokens, pos, cfg.maxKeysPerQuorum)
			if err != nil {
				return nil, err
			}
			root.Keys = keys
			pos = next
		case "roles":
			rootRole, targetsRole, next, err := parseRoles(data, tokens, pos, root.Keys)
			if err != nil {
				return nil, err
			}
			root.RootRole = rootRole
			root.TargetsRole = targetsRole
			pos = next
		default:
			pos = skipToken(tokens, pos)
		}
	}
	return root, nil
}

// indexAt finds the token whose Start equals offset — used to recover a
// token index from the byte span captured earlier as a signedSpan.
func indexAt(tokens []jsontoken.Token, offset int) int {
	for i, t := range tokens {
		if t.Start == offset {
			return i
		}
	}
	return -1
}

// parseKeys decodes the "keys" map into the fixed-capacity key table a
// quorum check reads from (at most maxKeys entries, §3), acquiring one
// pool slot per well-formed key and refusing ErrTooManyKeys once the table
// is full rather than growing it.
func parseKeys(data []byte, tokens []jsontoken.Token, idx int, maxKeys int) ([]Key, int, error) {
	if tokens[idx].Type != jsontoken.Object {
		return nil, 0, fmt.Errorf("%w: keys is not an object", ErrMalformedJSON)
	}
	n := tokens[idx].Size / 2
	pos := idx + 1

	keyTable := pool.New[Key](maxKeys)
	for i := 0; i < n; i++ {
		keyIDHex := string(data[tokens[pos].Start:tokens[pos].End])
		pos++

		var key Key
		validID := len(keyIDHex) == keyIDLen*2
		if validID {
			raw, err := codec.HexDecode(keyIDHex)
			if err == nil {
				copy(key.ID[:], raw)
			} else {
				validID = false
			}
		}

		if tokens[pos].Type != jsontoken.Object {
			return nil, 0, fmt.Errorf("%w: key entry is not an object", ErrMalformedJSON)
		}
		keyObjSize := tokens[pos].Size / 2
		pos++

		keytypeOK, keyvalOK := false, false
		for j := 0; j < keyObjSize; j++ {
			field := string(data[tokens[pos].Start:tokens[pos].End])
			pos++
			switch field {
			case "keytype":
				key.Type = KeyTypeFromString(string(data[tokens[pos].Start:tokens[pos].End]))
				keytypeOK = key.Type != KeyTypeUnknown
				pos++
			case "keyval":
				val, next, err := parseKeyval(data, tokens, pos, key.Type)
				if err != nil {
					return nil, 0, err
				}
				key.Value = val
				keyvalOK = true
				pos = next
			default:
				pos = skipToken(tokens, pos)
			}
		}

		if validID && keytypeOK && keyvalOK {
			h, ok := keyTable.Acquire()
			if !ok {
				return nil, 0, ErrTooManyKeys
			}
			*keyTable.Get(h) = key
		}
	}

	var keys []Key
	for h := 0; h < keyTable.Cap(); h++ {
		if keyTable.InUse(h) {
			keys = append(keys, *keyTable.Get(h))
		}
	}
	return keys, pos, nil
}

func parseKeyval(data []byte, tokens []jsontoken.Token, idx int, keyType KeyType) ([32]byte, int, error) {
	var out [32]byte
	if tokens[idx].Type != jsontoken.Object {
		return out, 0, fmt.Errorf("%w: keyval is not an object", ErrMalformedJSON)
	}
	n := tokens[idx].Size / 2
	pos := idx + 1
	for i := 0; i < n; i++ {
		field := string(data[tokens[pos].Start:tokens[pos].End])
		pos++
		if field == "public" {
			if keyType == KeyTypeEd25519 {
				raw, err := codec.HexDecode(string(data[tokens[pos].Start:tokens[pos].End]))
				if err == nil && len(raw) == 32 {
					copy(out[:], raw)
				}
			}
			pos++
		} else {
			pos = skipToken(tokens, pos)
		}
	}
	return out, pos, nil
}

func parseRoles(data []byte, tokens []jsontoken.Token, idx int, keys []Key) (rootRole, targetsRole Role, next int, err error) {
	if tokens[idx].Type != jsontoken.Object {
		return Role{}, Role{}, 0, fmt.Errorf("%w: roles is not an object", ErrMalformedJSON)
	}
	n := tokens[idx].Size / 2
	pos := idx + 1

	var haveRoot, haveTargets bool
	for i := 0; i < n; i++ {
		name := string(data[tokens[pos].Start:tokens[pos].End])
		pos++
		switch name {
		case "root":
			rootRole, pos, err = parseRole(data, tokens, pos)
			if err != nil {
				return Role{}, Role{}, 0, err
			}
			haveRoot = true
		case "targets":
			targetsRole, pos, err = parseRole(data, tokens, pos)
			if err != nil {
				return Role{}, Role{}, 0, err
			}
			haveTargets = true
		default:
			pos = skipToken(tokens, pos)
		}
	}
	if !haveRoot || !haveTargets {
		return Role{}, Role{}, 0, fmt.Errorf("%w: roles missing root or targets entry", ErrMalformedJSON)
	}
	return rootRole, targetsRole, pos, nil
}

func parseRole(data []byte, tokens []jsontoken.Token, idx int) (Role, int, error) {
	if tokens[idx].Type != jsontoken.Object {
		return Role{}, 0, fmt.Errorf("%w: role is not an object", ErrMalformedJSON)
	}
	n := tokens[idx].Size / 2
	pos := idx + 1

	var role Role
	haveThreshold, haveKeyIDs := false, false
	for i := 0; i < n; i++ {
		field := string(data[tokens[pos].Start:tokens[pos].End])
		pos++
		switch field {
		case "threshold":
			v, ok := decDigits(string(data[tokens[pos].Start:tokens[pos].End]))
			if ok && v >= 0 {
				role.Threshold = int(v)
				haveThreshold = true
			}
			pos++
		case "keyids":
			if tokens[pos].Type != jsontoken.Array {
				pos = skipToken(tokens, pos)
				continue
			}
			m := tokens[pos].Size
			pos++
			haveKeyIDs = true
			for j := 0; j < m; j++ {
				var id [keyIDLen]byte
				hexStr := string(data[tokens[pos].Start:tokens[pos].End])
				if raw, err := codec.HexDecode(hexStr); err == nil && len(raw) == keyIDLen {
					copy(id[:], raw)
					role.KeyIDs = append(role.KeyIDs, id)
				}
				pos++
			}
		default:
			pos = skipToken(tokens, pos)
		}
	}
	if !haveThreshold || !haveKeyIDs {
		return Role{}, 0, fmt.Errorf("%w: role missing threshold or keyids", ErrMalformedJSON)
	}
	return role, pos, nil
}
