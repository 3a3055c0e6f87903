package extract

import (
	"strconv"
)

// lexer tokenizes PDF object syntax. The same grammar covers both indirect
// object bodies and page content streams; content-stream operators surface
// as keyword tokens.
type lexer struct {
	data []byte
	pos  int
}

// next returns the next token. Values (names, strings, numbers, references,
// dictionaries, arrays, booleans, null) come back in val with an empty op;
// keywords and operators come back in op. ok is false at end of input.
func (l *lexer) next() (val any, op string, ok bool) {
	l.skipSpace()
	if l.pos >= len(l.data) {
		return nil, "", false
	}

	switch c := l.data[l.pos]; {
	case c == '/':
		return l.name(), "", true
	case c == '(':
		return l.literalString(), "", true
	case c == '<':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			return l.dict(), "", true
		}
		return l.hexString(), "", true
	case c == '[':
		return l.array(), "", true
	case c == ']':
		l.pos++
		return nil, "]", true
	case c == '>':
		l.pos++
		if l.pos < len(l.data) && l.data[l.pos] == '>' {
			l.pos++
		}
		return nil, ">>", true
	case c == '{' || c == '}' || c == ')':
		l.pos++
		return nil, string(c), true
	case c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9'):
		return l.numberOrRef(), "", true
	default:
		kw := l.keyword()
		switch kw {
		case "true":
			return true, "", true
		case "false":
			return false, "", true
		case "null":
			return nil, "", true
		}
		return nil, kw, true
	}
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isPDFSpace(c) {
			l.pos++
			continue
		}
		if c == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
			continue
		}
		return
	}
}

func (l *lexer) name() pdfName {
	l.pos++ // consume '/'
	start := l.pos
	var buf []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isPDFSpace(c) || isPDFDelim(c) {
			break
		}
		if c == '#' && l.pos+2 < len(l.data) {
			if hi, ok1 := hexNibble(l.data[l.pos+1]); ok1 {
				if lo, ok2 := hexNibble(l.data[l.pos+2]); ok2 {
					if buf == nil {
						buf = append(buf, l.data[start:l.pos]...)
					}
					buf = append(buf, hi<<4|lo)
					l.pos += 3
					continue
				}
			}
		}
		if buf != nil {
			buf = append(buf, c)
		}
		l.pos++
	}
	if buf != nil {
		return pdfName(buf)
	}
	return pdfName(l.data[start:l.pos])
}

func (l *lexer) literalString() pdfString {
	l.pos++ // consume '('
	var out []byte
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch c {
		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				return out
			}
			e := l.data[l.pos]
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b':
				out = append(out, '\b')
			case 'f':
				out = append(out, '\f')
			case '\n':
				// line continuation
			case '\r':
				if l.pos+1 < len(l.data) && l.data[l.pos+1] == '\n' {
					l.pos++
				}
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos+1 < len(l.data); i++ {
						nc := l.data[l.pos+1]
						if nc < '0' || nc > '7' {
							break
						}
						v = v*8 + int(nc-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
			l.pos++
		case '(':
			depth++
			out = append(out, c)
			l.pos++
		case ')':
			depth--
			l.pos++
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
			l.pos++
		}
	}
	return out
}

func (l *lexer) hexString() pdfString {
	l.pos++ // consume '<'
	var out []byte
	var hi byte
	haveHi := false
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			break
		}
		nib, ok := hexNibble(c)
		if !ok {
			continue
		}
		if haveHi {
			out = append(out, hi<<4|nib)
			haveHi = false
		} else {
			hi = nib
			haveHi = true
		}
	}
	if haveHi {
		out = append(out, hi<<4)
	}
	return out
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func (l *lexer) dict() pdfDict {
	l.pos += 2 // consume '<<'
	d := pdfDict{}
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return d
		}
		if l.data[l.pos] == '>' {
			l.pos++
			if l.pos < len(l.data) && l.data[l.pos] == '>' {
				l.pos++
			}
			return d
		}
		if l.data[l.pos] != '/' {
			// malformed entry; advance to avoid stalling
			l.pos++
			continue
		}
		key := string(l.name())
		val, op, ok := l.next()
		if !ok {
			return d
		}
		if op != "" {
			continue
		}
		d[key] = val
	}
}

func (l *lexer) array() []any {
	l.pos++ // consume '['
	var arr []any
	for {
		l.skipSpace()
		if l.pos >= len(l.data) {
			return arr
		}
		if l.data[l.pos] == ']' {
			l.pos++
			return arr
		}
		val, op, ok := l.next()
		if !ok {
			return arr
		}
		if op == "]" {
			return arr
		}
		if op != "" {
			continue
		}
		arr = append(arr, val)
	}
}

// numberOrRef parses a numeric token, recognizing the "N G R" indirect
// reference form via lookahead.
func (l *lexer) numberOrRef() any {
	tok := l.numToken()
	isInt := true
	for _, c := range tok {
		if c == '.' {
			isInt = false
			break
		}
	}
	if !isInt {
		f, _ := strconv.ParseFloat(string(tok), 64)
		return f
	}

	n, _ := strconv.ParseInt(string(tok), 10, 64)

	save := l.pos
	l.skipSpace()
	genStart := l.pos
	for l.pos < len(l.data) && l.data[l.pos] >= '0' && l.data[l.pos] <= '9' {
		l.pos++
	}
	if l.pos > genStart {
		l.skipSpace()
		if l.pos < len(l.data) && l.data[l.pos] == 'R' {
			after := l.pos + 1
			if after >= len(l.data) || isPDFSpace(l.data[after]) || isPDFDelim(l.data[after]) {
				l.pos = after
				return pdfRef{num: int(n)}
			}
		}
	}
	l.pos = save
	return n
}

func (l *lexer) numToken() []byte {
	start := l.pos
	if l.pos < len(l.data) && (l.data[l.pos] == '+' || l.data[l.pos] == '-') {
		l.pos++
	}
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if (c >= '0' && c <= '9') || c == '.' {
			l.pos++
			continue
		}
		break
	}
	return l.data[start:l.pos]
}

func (l *lexer) keyword() string {
	start := l.pos
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		if isPDFSpace(c) || isPDFDelim(c) {
			break
		}
		l.pos++
	}
	if l.pos == start {
		// unknown delimiter byte; consume it so scanning always advances
		l.pos++
		return string(l.data[start:l.pos])
	}
	return string(l.data[start:l.pos])
}
