package codec

import "errors"

// ErrInvalidBase64 is returned for malformed base64 input: wrong length,
// an out-of-alphabet byte, or padding in the wrong place.
var ErrInvalidBase64 = errors.New("codec: invalid base64 input")

const b64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const (
	symPad byte = 0xfe
	symOOR byte = 0xff
)

func base64DecodeSymbol(c byte) byte {
	switch {
	case c >= 'A' && c <= 'Z':
		return c - 'A'
	case c >= 'a' && c <= 'z':
		return 26 + c - 'a'
	case c >= '0' && c <= '9':
		return 52 + c - '0'
	case c == '+':
		return 62
	case c == '/':
		return 63
	case c == '=':
		return symPad
	default:
		return symOOR
	}
}

// Base64Encode renders b in the standard base64 alphabet with '=' padding.
func Base64Encode(b []byte) string {
	out := make([]byte, ((len(b)+2)/3)*4)
	j := 0
	for i := 0; i < len(b); i += 3 {
		remaining := len(b) - i
		var triple [3]byte
		copy(triple[:], b[i:])

		out[j] = b64Alphabet[triple[0]>>2]
		switch {
		case remaining >= 3:
			out[j+1] = b64Alphabet[((triple[0]<<4)|(triple[1]>>4))&0x3f]
			out[j+2] = b64Alphabet[((triple[1]<<2)|(triple[2]>>6))&0x3f]
			out[j+3] = b64Alphabet[triple[2]&0x3f]
		case remaining == 2:
			out[j+1] = b64Alphabet[((triple[0]<<4)|(triple[1]>>4))&0x3f]
			out[j+2] = b64Alphabet[(triple[1]<<2)&0x3f]
			out[j+3] = '='
		default: // remaining == 1
			out[j+1] = b64Alphabet[(triple[0]<<4)&0x3f]
			out[j+2] = '='
			out[j+3] = '='
		}
		j += 4
	}
	return string(out)
}

// Base64Decode decodes standard base64 text, requiring the input length to
// be a multiple of 4 and padding to sit only at the very end — the same
// strictness the reference base64_decode applies a quadruple at a time.
func Base64Decode(s string) ([]byte, error) {
	if len(s)%4 != 0 {
		return nil, ErrInvalidBase64
	}
	out := make([]byte, 0, (len(s)/4)*3)
	for i := 0; i < len(s); i += 4 {
		sym := [4]byte{
			base64DecodeSymbol(s[i]),
			base64DecodeSymbol(s[i+1]),
			base64DecodeSymbol(s[i+2]),
			base64DecodeSymbol(s[i+3]),
		}
		if sym[0] == symOOR || sym[1] == symOOR || sym[2] == symOOR || sym[3] == symOOR {
			return nil, ErrInvalidBase64
		}
		if sym[0] == symPad || sym[1] == symPad {
			return nil, ErrInvalidBase64
		}

		b0 := sym[0]<<2 | sym[1]>>4
		out = append(out, b0)

		if sym[2] == symPad {
			if sym[3] != symPad || i+4 != len(s) {
				return nil, ErrInvalidBase64
			}
			break
		}
		b1 := sym[1]<<4 | sym[2]>>2
		out = append(out, b1)

		if sym[3] == symPad {
			if i+4 != len(s) {
				return nil, ErrInvalidBase64
			}
			break
		}
		b2 := sym[2]<<6 | sym[3]
		out = append(out, b2)
	}
	return out, nil
}

// Base64DecodedLen returns the exact capacity needed to hold the bytes
// decoded from a base64 string of the given length, matching
// BASE64_DECODED_BUF_SIZE's sizing so callers can reject oversized
// signatures before decoding (spec: fixed CRYPTO_SIGNATURE_LEN buffers).
func Base64DecodedLen(encodedLen int) int {
	return (encodedLen / 4) * 3
}
