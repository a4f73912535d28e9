package uptane

import (
	"fmt"

	"github.com/uptane-partial/libuptiny/codec"
	"github.com/uptane-partial/libuptiny/ed25519"
	"github.com/uptane-partial/libuptiny/jsontoken"
	"github.com/uptane-partial/libuptiny/pool"
)

// sigEntry is one slot of the verify-context pool parseSignatures
// acquires from: a trusted key index paired with the raw signature bytes
// to check it against, bounded to maxSigs concurrently-held entries.
type sigEntry struct {
	keyIdx int
	sig    [64]byte
}

// signedSpan is the byte range [start, end) of the "signed" object in the
// common TUF shape every role document shares:
//
//	{ "signatures": [ {"keyid": "...", "method": "...", "sig": "..."} ],
//	  "signed": { ... role-specific fields ... } }
//
// ParseRoot and TargetsParser record it, and countValidSignatures checks
// each signature over exactly these bytes — ported from
// root.c/signatures.c, which do the same thing token by token against a
// fixed jsmn arena.
type signedSpan struct {
	start, end int
}

// parseSignatures walks the "signatures" array token at tokens[idx] (idx
// pointing at the array token itself) and returns, for each signature
// object whose keyid matches a trusted key and whose method is the
// supported "ed25519", the key's index and the decoded 64-byte signature.
// An entry naming any other method is ignored entirely, even if its keyid
// and sig otherwise parse cleanly. It mirrors uptane_parse_signatures /
// parse_sig in signatures.c, fanning out over the same JSON shape.
func parseSignatures(data []byte, tokens []jsontoken.Token, idx int, trustedKeys []Key, maxSigs int) ([]int, [][64]byte, error) {
	if tokens[idx].Type != jsontoken.Array {
		return nil, nil, fmt.Errorf("%w: signatures is not an array", ErrMalformedJSON)
	}
	n := tokens[idx].Size
	pos := idx + 1

	verifyPool := pool.New[sigEntry](maxSigs)

	for i := 0; i < n; i++ {
		if tokens[pos].Type != jsontoken.Object {
			return nil, nil, fmt.Errorf("%w: signature entry is not an object", ErrMalformedJSON)
		}
		objSize := tokens[pos].Size / 2
		pos++

		var keyIdx = -1
		var sig [64]byte
		haveKey, haveSig, methodOK := false, false, false

		for f := 0; f < objSize; f++ {
			name := string(data[tokens[pos].Start:tokens[pos].End])
			pos++
			switch name {
			case "keyid":
				keyHex := string(data[tokens[pos].Start:tokens[pos].End])
				for ki, k := range trustedKeys {
					if codec.HexEqual(keyHex, k.ID[:]) {
						keyIdx = ki
						haveKey = true
						break
					}
				}
				pos++
			case "method":
				methodOK = string(data[tokens[pos].Start:tokens[pos].End]) == "ed25519"
				pos++
			case "sig":
				b64 := string(data[tokens[pos].Start:tokens[pos].End])
				raw, err := codec.Base64Decode(b64)
				if err == nil && len(raw) == 64 {
					copy(sig[:], raw)
					haveSig = true
				}
				pos++
			default:
				pos = skipToken(tokens, pos)
			}
		}

		if haveKey && haveSig && methodOK {
			h, ok := verifyPool.Acquire()
			if !ok {
				return nil, nil, ErrTooManySignatures
			}
			*verifyPool.Get(h) = sigEntry{keyIdx: keyIdx, sig: sig}
		}
	}

	var keyIdxs []int
	var sigs [][64]byte
	for h := 0; h < verifyPool.Cap(); h++ {
		if verifyPool.InUse(h) {
			e := verifyPool.Get(h)
			keyIdxs = append(keyIdxs, e.keyIdx)
			sigs = append(sigs, e.sig)
		}
	}
	return keyIdxs, sigs, nil
}

// skipToken advances past the token at pos, recursing into the whole
// subtree for an object/array, matching consume_recursive_json.
func skipToken(tokens []jsontoken.Token, pos int) int {
	t := tokens[pos]
	if t.Type != jsontoken.Object && t.Type != jsontoken.Array {
		return pos + 1
	}
	end := t.End
	i := pos + 1
	for ; i < len(tokens); i++ {
		if tokens[i].Start >= end {
			break
		}
	}
	return i
}

// countValidSignatures verifies each (keyIdx, sig) pair against the bytes
// data[signed.start:signed.end] and returns how many keys produced a
// valid signature, counting each trusted key at most once.
func countValidSignatures(data []byte, signed signedSpan, keyIdxs []int, sigs [][64]byte, keys []Key) int {
	seen := make(map[int]bool)
	valid := 0
	for i, ki := range keyIdxs {
		if seen[ki] {
			continue
		}
		if keys[ki].Type != KeyTypeEd25519 {
			continue
		}
		if ed25519.Verify(keys[ki].Value, sigs[i], data[signed.start:signed.end]) == nil {
			seen[ki] = true
			valid++
		}
	}
	return valid
}
