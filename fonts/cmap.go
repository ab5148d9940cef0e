package fonts

import (
	"bufio"
	"bytes"
	"sort"
	"strings"
	"unicode/utf16"
)

// CMap maps character codes to Unicode text, as read from a /ToUnicode stream.
type CMap struct {
	entries map[string]string
	// lengths holds the code byte lengths in use, longest first.
	lengths []int
}

// ParseCMap reads the codespace, bfchar and bfrange sections of a CMap.
// Unknown operators are ignored.
func ParseCMap(data []byte) *CMap {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	m := &CMap{entries: make(map[string]string)}
	lengthSet := make(map[int]bool)
	state := ""
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		for _, marker := range []string{"codespacerange", "bfchar", "bfrange"} {
			if i := strings.Index(line, "begin"+marker); i >= 0 {
				state = marker
				line = strings.TrimSpace(line[i+len("begin"+marker):])
			}
		}
		if line == "" {
			continue
		}
		ended := false
		if i := strings.Index(line, "end"+state); state != "" && i >= 0 {
			line = line[:i]
			ended = true
		}
		switch state {
		case "codespacerange":
			hexes := hexTokens(line)
			for i := 0; i+1 < len(hexes); i += 2 {
				if b := hexBytes(hexes[i]); len(b) > 0 {
					lengthSet[len(b)] = true
				}
			}
		case "bfchar":
			hexes := hexTokens(line)
			for i := 0; i+1 < len(hexes); i += 2 {
				src := hexBytes(hexes[i])
				if len(src) == 0 {
					continue
				}
				m.entries[string(src)] = utf16Text(hexBytes(hexes[i+1]))
				lengthSet[len(src)] = true
			}
		case "bfrange":
			if strings.Contains(line, "[") && !strings.Contains(line, "]") {
				line = joinUntilBracket(line, sc)
			}
			m.addRange(line, lengthSet)
		}
		if ended {
			state = ""
		}
	}
	if len(lengthSet) == 0 {
		for k := range m.entries {
			lengthSet[len(k)] = true
		}
	}
	for l := range lengthSet {
		m.lengths = append(m.lengths, l)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(m.lengths)))
	return m
}

func (m *CMap) addRange(line string, lengthSet map[int]bool) {
	hexes := hexTokens(line)
	if len(hexes) < 3 {
		return
	}
	lo, hi := hexBytes(hexes[0]), hexBytes(hexes[1])
	if len(lo) == 0 {
		return
	}
	size := len(lo)
	lengthSet[size] = true
	start, end := bytesInt(lo), bytesInt(hi)
	if end < start || end-start > 0xffff {
		return
	}
	if strings.Contains(line, "[") {
		for i := 0; i <= end-start && 2+i < len(hexes); i++ {
			m.entries[string(intBytes(start+i, size))] = utf16Text(hexBytes(hexes[2+i]))
		}
		return
	}
	dst := hexBytes(hexes[2])
	for i := 0; i <= end-start; i++ {
		next := append([]byte(nil), dst...)
		if len(next) > 0 {
			carry := i
			for j := len(next) - 1; j >= 0 && carry > 0; j-- {
				v := int(next[j]) + carry
				next[j] = byte(v)
				carry = v >> 8
			}
		}
		m.entries[string(intBytes(start+i, size))] = utf16Text(next)
	}
}

// Lookup returns the text for a code of exactly the given bytes.
func (m *CMap) Lookup(code []byte) (string, bool) {
	s, ok := m.entries[string(code)]
	return s, ok
}

// Lengths returns the code byte lengths, longest first.
func (m *CMap) Lengths() []int { return m.lengths }

func joinUntilBracket(line string, sc *bufio.Scanner) string {
	for sc.Scan() {
		next := strings.TrimSpace(sc.Text())
		line += " " + next
		if strings.Contains(next, "]") {
			break
		}
	}
	return line
}

func hexTokens(line string) []string {
	var tokens []string
	for {
		start := strings.IndexByte(line, '<')
		if start < 0 {
			break
		}
		end := strings.IndexByte(line[start+1:], '>')
		if end < 0 {
			break
		}
		tokens = append(tokens, strings.Join(strings.Fields(line[start+1:start+1+end]), ""))
		line = line[start+end+2:]
	}
	return tokens
}

func hexBytes(h string) []byte {
	if len(h)%2 == 1 {
		h += "0"
	}
	out := make([]byte, len(h)/2)
	for i := 0; i < len(h); i += 2 {
		out[i/2] = hexNibble(h[i])<<4 | hexNibble(h[i+1])
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

func bytesInt(b []byte) int {
	v := 0
	for _, c := range b {
		v = v<<8 | int(c)
	}
	return v
}

func intBytes(v, size int) []byte {
	out := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

func utf16Text(b []byte) string {
	if len(b)%2 == 1 {
		b = append([]byte{0}, b...)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i])<<8 | uint16(b[2*i+1])
	}
	return string(utf16.Decode(units))
}
