package fonts

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/wudi/pdfredact/ir/raw"
)

// Encoding maps single-byte codes of a simple font to runes; zero means the
// code has no known character.
type Encoding [256]rune

func charmapEncoding(cm *charmap.Charmap) Encoding {
	var e Encoding
	for i := 0; i < 256; i++ {
		r := cm.DecodeByte(byte(i))
		if r != '\ufffd' {
			e[i] = r
		}
	}
	return e
}

var (
	winAnsiEncoding  = charmapEncoding(charmap.Windows1252)
	macRomanEncoding = charmapEncoding(charmap.Macintosh)
	standardEncoding = func() Encoding {
		var e Encoding
		for i := 32; i < 127; i++ {
			e[i] = rune(i)
		}
		e['\''] = '’'
		e['`'] = '‘'
		for code, name := range map[int]string{
			0xa1: "exclamdown", 0xa4: "fraction", 0xa7: "section", 0xa9: "quotesingle",
			0xaa: "quotedblleft", 0xab: "guillemotleft", 0xb1: "endash", 0xb7: "periodcentered",
			0xba: "quotedblright", 0xbb: "guillemotright", 0xbc: "ellipsis", 0xbf: "questiondown",
			0xc1: "grave", 0xc2: "acute", 0xc4: "tilde", 0xc8: "dieresis", 0xd0: "emdash",
			0xe3: "ordfeminine", 0xeb: "ordmasculine", 0xf5: "dotlessi",
		} {
			e[code], _ = GlyphRune(name)
		}
		return e
	}()
)

// BaseEncoding returns the named predefined encoding; unknown names yield
// StandardEncoding.
func BaseEncoding(name string) Encoding {
	switch name {
	case "WinAnsiEncoding":
		return winAnsiEncoding
	case "MacRomanEncoding":
		return macRomanEncoding
	}
	return standardEncoding
}

var glyphNames = map[string]rune{
	"space": ' ', "exclam": '!', "quotedbl": '"', "numbersign": '#', "dollar": '$',
	"percent": '%', "ampersand": '&', "quotesingle": '\'', "parenleft": '(', "parenright": ')',
	"asterisk": '*', "plus": '+', "comma": ',', "hyphen": '-', "period": '.', "slash": '/',
	"zero": '0', "one": '1', "two": '2', "three": '3', "four": '4', "five": '5', "six": '6',
	"seven": '7', "eight": '8', "nine": '9', "colon": ':', "semicolon": ';', "less": '<',
	"equal": '=', "greater": '>', "question": '?', "at": '@', "bracketleft": '[',
	"backslash": '\\', "bracketright": ']', "asciicircum": '^', "underscore": '_',
	"grave": '`', "braceleft": '{', "bar": '|', "braceright": '}', "asciitilde": '~',
	"exclamdown": '¡', "questiondown": '¿', "ordfeminine": 'ª', "ordmasculine": 'º',
	"degree": '°', "section": '§', "paragraph": '¶', "copyright": '©', "registered": '®',
	"periodcentered": '·', "guillemotleft": '«', "guillemotright": '»', "quoteleft": '‘',
	"quoteright": '’', "quotedblleft": '“', "quotedblright": '”',
	"quotesinglbase": '‚', "quotedblbase": '„', "endash": '–', "emdash": '—',
	"bullet": '•', "ellipsis": '…', "fraction": '⁄', "dotlessi": 'ı',
	"acute": '´', "dieresis": '¨', "tilde": '˜', "germandbls": 'ß', "nbspace": '\u00a0',
	"Euro": '€', "sterling": '£', "yen": '¥', "cent": '¢', "multiply": '×', "divide": '÷',
	"minus": '−', "fi": 'ﬁ', "fl": 'ﬂ', "ae": 'æ', "AE": 'Æ', "oslash": 'ø',
	"Oslash": 'Ø', "eth": 'ð', "Eth": 'Ð', "thorn": 'þ', "Thorn": 'Þ',
}

var accentMarks = map[string]rune{
	"acute": '\u0301', "grave": '\u0300', "circumflex": '\u0302', "dieresis": '\u0308',
	"tilde": '\u0303', "cedilla": '\u0327', "ring": '\u030a', "caron": '\u030c',
}

// GlyphRune resolves a PostScript glyph name: single letters, names from the
// glyph table, letter+accent names such as "eacute", and uniXXXX/uXXXX forms.
func GlyphRune(name string) (rune, bool) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	if len(name) == 1 {
		c := name[0]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return rune(c), true
		}
	}
	if r, ok := glyphNames[name]; ok {
		return r, true
	}
	if len(name) > 1 {
		if mark, ok := accentMarks[name[1:]]; ok {
			composed := norm.NFC.String(string([]rune{rune(name[0]), mark}))
			if r := []rune(composed); len(r) == 1 {
				return r[0], true
			}
		}
	}
	for _, prefix := range []string{"uni", "u"} {
		if strings.HasPrefix(name, prefix) && len(name) >= len(prefix)+4 {
			if v, err := strconv.ParseUint(name[len(prefix):len(prefix)+4], 16, 32); err == nil {
				return rune(v), true
			}
		}
	}
	return 0, false
}

// applyDifferences overlays a /Differences array: a number sets the next
// code, each following name fills consecutive codes.
func applyDifferences(enc *Encoding, diffs *raw.ArrayObj) {
	code := 0
	for _, item := range diffs.Items {
		switch v := item.(type) {
		case raw.NumberObj:
			code = int(v.Int())
		case raw.NameObj:
			if code >= 0 && code < 256 {
				if r, ok := GlyphRune(v.Val); ok {
					enc[code] = r
				}
			}
			code++
		}
	}
}
