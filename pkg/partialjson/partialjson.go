// Package partialjson provides best-effort parsing of truncated JSON.
//
// A streamed tool call delivers its argument object as raw text fragments;
// consumers want to render the arguments while they fill in. Parse accepts a
// syntactic prefix of a valid JSON document and returns the deepest value
// that can be unambiguously completed: open strings are closed at their last
// confirmed character, open arrays and objects at their last confirmed
// element or key-value pair. Trailing numbers and unfinished literals are
// never confirmed, since a later byte could extend them; a completed
// true/false/null cannot be extended and confirms immediately.
//
// Parse is monotonic: for prefixes p1 ⊂ p2 of one document, every structure
// confirmed from p1 is still present in the parse of p2. It is idempotent:
// re-parsing a completed result yields the same value.
package partialjson

import "encoding/json"

// Parse returns the deepest JSON value the fragment can be unambiguously
// completed to. ok is false when no structure is confirmable yet (for
// example a bare "{"), which is an expected streaming state, not an error.
func Parse(fragment string) (any, bool) {
	repaired, ok := Complete(fragment)
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, false
	}
	return v, true
}

type frame struct {
	kind byte // '{' or '['
	cut  int  // offset just past this container's last confirmed content
}

// Scanner modes.
const (
	modeNone = iota
	modeString
	modeNumber
	modeLiteral
)

// Structural expectations, meaningful in modeNone.
const (
	stValue = iota
	stKeyOrEnd
	stColon
	stAfter
)

// Complete repairs a truncated JSON fragment into a complete document by
// truncating to the last confirmed boundary and closing every open string
// and container. ok is false for fragments with no confirmed content and for
// text that is not a prefix of valid JSON.
func Complete(fragment string) (string, bool) {
	s := fragment

	var (
		stack     []frame
		mode      = modeNone
		state     = stValue
		topEnd    = -1
		confirmed = false

		// String scanning state.
		strIsKey bool
		safe     int // offset just past the last completable character
		escState int // 0 none, 1 after backslash, 2..5 consuming \uXXXX
		hexVal   int
		runeRem  int // continuation bytes outstanding for a multibyte rune

		lit    string
		litPos int
	)

	completeValue := func(end int) {
		confirmed = true
		if n := len(stack); n > 0 {
			stack[n-1].cut = end
		} else {
			topEnd = end
		}
		state = stAfter
	}

	for i := 0; i < len(s); i++ {
		b := s[i]

		switch mode {
		case modeString:
			if runeRem > 0 {
				if b&0xC0 != 0x80 {
					return "", false
				}
				runeRem--
				if runeRem == 0 {
					safe = i + 1
				}
				continue
			}
			switch {
			case escState == 1:
				if b == 'u' {
					escState = 2
					hexVal = 0
				} else {
					escState = 0
					safe = i + 1
				}
				continue
			case escState >= 2:
				d := hexDigit(b)
				if d < 0 {
					return "", false
				}
				hexVal = hexVal<<4 | d
				escState++
				if escState == 6 {
					escState = 0
					// A high surrogate stays unconfirmed until its pair
					// arrives; a cut right after it would decode to a
					// replacement rune the full document never contains.
					if hexVal < 0xD800 || hexVal > 0xDBFF {
						safe = i + 1
					}
				}
				continue
			case b == '"':
				mode = modeNone
				if strIsKey {
					state = stColon
				} else {
					completeValue(i + 1)
				}
				continue
			case b == '\\':
				escState = 1
				continue
			case b < 0x80:
				safe = i + 1
				continue
			case b >= 0xC0:
				runeRem = utf8Extra(b)
				if runeRem == 0 {
					safe = i + 1
				}
				continue
			default:
				// Unexpected continuation byte; not a valid prefix.
				return "", false
			}

		case modeLiteral:
			if litPos >= len(lit) || b != lit[litPos] {
				return "", false
			}
			litPos++
			if litPos == len(lit) {
				mode = modeNone
				completeValue(i + 1)
			}
			continue

		case modeNumber:
			if isNumberByte(b) {
				continue
			}
			mode = modeNone
			completeValue(i)
			// Fall through to structural handling of b.
		}

		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':

		case b == '"':
			if state != stValue && state != stKeyOrEnd {
				return "", false
			}
			mode = modeString
			strIsKey = state == stKeyOrEnd
			safe = i + 1
			escState = 0
			runeRem = 0

		case b == '{':
			if state != stValue {
				return "", false
			}
			stack = append(stack, frame{kind: '{', cut: i + 1})
			state = stKeyOrEnd

		case b == '[':
			if state != stValue {
				return "", false
			}
			stack = append(stack, frame{kind: '[', cut: i + 1})
			state = stValue

		case b == '}':
			if len(stack) == 0 || stack[len(stack)-1].kind != '{' {
				return "", false
			}
			stack = stack[:len(stack)-1]
			completeValue(i + 1)

		case b == ']':
			if len(stack) == 0 || stack[len(stack)-1].kind != '[' {
				return "", false
			}
			stack = stack[:len(stack)-1]
			completeValue(i + 1)

		case b == ',':
			if state != stAfter || len(stack) == 0 {
				return "", false
			}
			if stack[len(stack)-1].kind == '{' {
				state = stKeyOrEnd
			} else {
				state = stValue
			}

		case b == ':':
			if state != stColon {
				return "", false
			}
			state = stValue

		case b == 't' || b == 'f' || b == 'n':
			if state != stValue {
				return "", false
			}
			mode = modeLiteral
			switch b {
			case 't':
				lit = "true"
			case 'f':
				lit = "false"
			case 'n':
				lit = "null"
			}
			litPos = 1

		case b == '-' || (b >= '0' && b <= '9'):
			if state != stValue {
				return "", false
			}
			mode = modeNumber

		default:
			return "", false
		}
	}

	// End of input: truncate to the last confirmed boundary and close what
	// remains open.
	var prefix string
	switch mode {
	case modeString:
		if strIsKey {
			if len(stack) == 0 {
				return "", false
			}
			prefix = s[:stack[len(stack)-1].cut]
		} else {
			prefix = s[:safe] + `"`
			confirmed = true
		}
	case modeNumber, modeLiteral:
		if len(stack) == 0 {
			return "", false
		}
		prefix = s[:stack[len(stack)-1].cut]
	default:
		if len(stack) == 0 {
			if topEnd < 0 {
				return "", false
			}
			prefix = s[:topEnd]
		} else {
			prefix = s[:stack[len(stack)-1].cut]
		}
	}

	if !confirmed {
		return "", false
	}

	closers := make([]byte, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].kind == '{' {
			closers = append(closers, '}')
		} else {
			closers = append(closers, ']')
		}
	}
	return prefix + string(closers), true
}

func hexDigit(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	}
	return -1
}

func isNumberByte(b byte) bool {
	return (b >= '0' && b <= '9') || b == '-' || b == '+' || b == '.' || b == 'e' || b == 'E'
}

func utf8Extra(b byte) int {
	switch {
	case b >= 0xF0:
		return 3
	case b >= 0xE0:
		return 2
	case b >= 0xC0:
		return 1
	}
	return 0
}
