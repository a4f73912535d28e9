package uptane

// Timestamp is a UTC calendar timestamp in Uptane's wire format,
// YYYY-MM-DDThh:mm:ssZ, decomposed into fields rather than a library
// time.Time so that Before/After comparisons never depend on a timezone
// database being present on the device. Ported from uptane_time.c's
// struct layout.
type Timestamp struct {
	Year, Month, Day       int32
	Hour, Minute, Second   int32
}

// Before reports whether t chronologically precedes other. Both are
// assumed well-formed (validated by ParseTimestamp on the way in).
func (t Timestamp) Before(other Timestamp) bool {
	switch {
	case t.Year != other.Year:
		return t.Year < other.Year
	case t.Month != other.Month:
		return t.Month < other.Month
	case t.Day != other.Day:
		return t.Day < other.Day
	case t.Hour != other.Hour:
		return t.Hour < other.Hour
	case t.Minute != other.Minute:
		return t.Minute < other.Minute
	default:
		return t.Second < other.Second
	}
}

func decDigits(s string) (int32, bool) {
	neg := false
	i := 0
	if len(s) > 0 && s[0] == '-' {
		neg = true
		i = 1
	}
	if i == len(s) {
		return 0, false
	}
	var v int32
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		v = v*10 + int32(s[i]-'0')
	}
	if neg {
		v = -v
	}
	return v, true
}

// ParseTimestamp parses the fixed-width Uptane timestamp format, ignoring
// the literal delimiters ('-', 'T', ':', 'Z') at their required positions
// and decoding each field with dec2int's own semantics (a leading '-' is
// allowed). A seconds field above 59 — including a leap-second "60" — is
// a parse error; no other field is range-checked.
func ParseTimestamp(s string) (Timestamp, bool) {
	if len(s) != 20 {
		return Timestamp{}, false
	}
	var t Timestamp
	var ok bool
	if t.Year, ok = decDigits(s[0:4]); !ok {
		return Timestamp{}, false
	}
	if t.Month, ok = decDigits(s[5:7]); !ok {
		return Timestamp{}, false
	}
	if t.Day, ok = decDigits(s[8:10]); !ok {
		return Timestamp{}, false
	}
	if t.Hour, ok = decDigits(s[11:13]); !ok {
		return Timestamp{}, false
	}
	if t.Minute, ok = decDigits(s[14:16]); !ok {
		return Timestamp{}, false
	}
	if t.Second, ok = decDigits(s[17:19]); !ok || t.Second > 59 {
		return Timestamp{}, false
	}
	return t, true
}

// Clock supplies the current time to expiry checks. Implementations are
// injected rather than calling time.Now() directly, so tests can drive a
// fixed or stepped clock and the device can source time from whatever
// monotonic-but-externally-set mechanism it has (spec §5: "a
// monotonic-but-external time struct passed in").
type Clock interface {
	Now() Timestamp
}

// FixedClock is a Clock that always reports the same instant.
type FixedClock Timestamp

// Now implements Clock.
func (c FixedClock) Now() Timestamp { return Timestamp(c) }
