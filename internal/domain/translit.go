package domain

import (
	"strings"
	"unicode"
)

// Serbian Cyrillic → Gaj's Latin. The three digraph letters (љ, њ, џ) expand
// to two Latin letters; everything else is one-to-one.
var cyrToLat = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'ђ': "đ", 'е': "e",
	'ж': "ž", 'з': "z", 'и': "i", 'ј': "j", 'к': "k", 'л': "l", 'љ': "lj",
	'м': "m", 'н': "n", 'њ': "nj", 'о': "o", 'п': "p", 'р': "r", 'с': "s",
	'т': "t", 'ћ': "ć", 'у': "u", 'ф': "f", 'х': "h", 'ц': "c", 'ч': "č",
	'џ': "dž", 'ш': "š",
	'А': "A", 'Б': "B", 'В': "V", 'Г': "G", 'Д': "D", 'Ђ': "Đ", 'Е': "E",
	'Ж': "Ž", 'З': "Z", 'И': "I", 'Ј': "J", 'К': "K", 'Л': "L", 'Љ': "Lj",
	'М': "M", 'Н': "N", 'Њ': "Nj", 'О': "O", 'П': "P", 'Р': "R", 'С': "S",
	'Т': "T", 'Ћ': "Ć", 'У': "U", 'Ф': "F", 'Х': "H", 'Ц': "C", 'Ч': "Č",
	'Џ': "Dž", 'Ш': "Š",
}

var latToCyrDigraphs = map[string]rune{
	"lj": 'љ', "Lj": 'Љ', "LJ": 'Љ',
	"nj": 'њ', "Nj": 'Њ', "NJ": 'Њ',
	"dž": 'џ', "Dž": 'Џ', "DŽ": 'Џ',
}

var latToCyr = map[rune]rune{
	'a': 'а', 'b': 'б', 'v': 'в', 'g': 'г', 'd': 'д', 'đ': 'ђ', 'e': 'е',
	'ž': 'ж', 'z': 'з', 'i': 'и', 'j': 'ј', 'k': 'к', 'l': 'л', 'm': 'м',
	'n': 'н', 'o': 'о', 'p': 'п', 'r': 'р', 's': 'с', 't': 'т', 'ć': 'ћ',
	'u': 'у', 'f': 'ф', 'h': 'х', 'c': 'ц', 'č': 'ч', 'š': 'ш',
	'A': 'А', 'B': 'Б', 'V': 'В', 'G': 'Г', 'D': 'Д', 'Đ': 'Ђ', 'E': 'Е',
	'Ž': 'Ж', 'Z': 'З', 'I': 'И', 'J': 'Ј', 'K': 'К', 'L': 'Л', 'M': 'М',
	'N': 'Н', 'O': 'О', 'P': 'П', 'R': 'Р', 'S': 'С', 'T': 'Т', 'Ć': 'Ћ',
	'U': 'У', 'F': 'Ф', 'H': 'Х', 'C': 'Ц', 'Č': 'Ч', 'Š': 'Ш',
}

// Latin diacritics folded to plain ASCII for comparison purposes, following
// the common Serbian ASCII convention (đ → dj).
var foldDiacritics = map[rune]string{
	'č': "c", 'ć': "c", 'ž': "z", 'š': "s", 'đ': "dj",
}

// ToLatin transliterates Serbian Cyrillic to Latin. The mapping is total:
// characters without an entry, including Latin text, pass through unchanged,
// so the function is safe to apply to mixed-script input.
func ToLatin(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := cyrToLat[r]; ok {
			b.WriteString(repl)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ToCyrillic transliterates Gaj's Latin to Serbian Cyrillic, consuming the
// digraphs lj/nj/dž as single letters. Unmapped characters pass through, so
// ToCyrillic(ToLatin(s)) == s for Serbian text in either script.
func ToCyrillic(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(runes); i++ {
		if i+1 < len(runes) {
			if c, ok := latToCyrDigraphs[string(runes[i:i+2])]; ok {
				b.WriteRune(c)
				i++
				continue
			}
		}
		if c, ok := latToCyr[runes[i]]; ok {
			b.WriteRune(c)
		} else {
			b.WriteRune(runes[i])
		}
	}
	return b.String()
}

// NormalizeForMatch maps text from either script onto one comparable form:
// Latin, lowercased, diacritics folded, whitespace collapsed. Cyrillic and
// Latin spellings of the same name normalize to the same string.
func NormalizeForMatch(s string) string {
	s = ToLatin(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		r = unicode.ToLower(r)
		if repl, ok := foldDiacritics[r]; ok {
			b.WriteString(repl)
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
