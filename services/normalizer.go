package services

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var (
	// U+2212 (MINUS SIGN) → ASCII-Bindestrich
	minusToHyphen = runes.Map(func(r rune) rune {
		if r == '\u2212' {
			return '-'
		}
		return r
	})

	outlinePrefixRe = regexp.MustCompile(`(?m)^\s*\d+(?:\.\d+)*\s*\.?\s*`)
	blankLinesRe    = regexp.MustCompile(`\n\s*\n`)
	figureRefRe     = regexp.MustCompile(`\(Fig\.[^)]*\)`)
	tableRefRe      = regexp.MustCompile(`\(Table[^)]*\)`)
	referToFigRe    = regexp.MustCompile(`Refer to Fig\.[^\s.]*\.?`)
	fullReviewRe    = regexp.MustCompile(`(?i)\(for full review see[^)]*\)`)
)

// EscapeDecodeError meldet eine ungültige Backslash-Escape-Sequenz.
type EscapeDecodeError struct {
	Offset int
	Reason string
}

func (e *EscapeDecodeError) Error() string {
	return fmt.Sprintf("cannot decode escape at byte %d: %s", e.Offset, e.Reason)
}

// Normalize bereinigt Passage-Text: Minuszeichen, eingebettete Escapes,
// Whitespace, Gliederungsnummern und Abbildungs-/Tabellenverweise.
// Die Funktion schlägt nie fehl; ungültige Escapes bleiben undekodiert.
func Normalize(text string) string {
	out, _ := normalize(text)
	return out
}

func normalize(text string) (string, error) {
	text, _, _ = transform.String(minusToHyphen, text)

	decoded, escErr := DecodeEscapes(text)
	if escErr == nil {
		text = decoded
	}

	text = strings.ReplaceAll(text, `\`, "")
	text = collapseSpaces(text)

	text = outlinePrefixRe.ReplaceAllString(text, "")
	text = strings.TrimSpace(blankLinesRe.ReplaceAllString(text, "\n"))

	text = figureRefRe.ReplaceAllString(text, "")
	text = tableRefRe.ReplaceAllString(text, "")
	text = referToFigRe.ReplaceAllString(text, "")
	text = fullReviewRe.ReplaceAllString(text, "")

	// Entfernte Verweise hinterlassen doppelte Leerzeichen
	return collapseSpaces(text), escErr
}

// collapseSpaces ersetzt jede Unicode-Whitespace-Folge durch ein Leerzeichen und trimmt.
func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// DecodeEscapes dekodiert Backslash-Escapes im Text, als wäre er seine eigene
// escapte Quelldarstellung. Unbekannte Escapes bleiben unverändert stehen.
func DecodeEscapes(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size
			continue
		}
		if i+1 >= len(s) {
			return s, &EscapeDecodeError{Offset: i, Reason: "trailing backslash"}
		}
		next := s[i+1]
		switch next {
		case '\n':
			// Zeilenfortsetzung
		case '\\', '\'', '"':
			b.WriteByte(next)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i + 1
			var v rune
			for j < len(s) && j < i+4 && s[j] >= '0' && s[j] <= '7' {
				v = v*8 + rune(s[j]-'0')
				j++
			}
			b.WriteRune(v)
			i = j
			continue
		case 'x', 'u', 'U':
			width := hexWidth(next)
			r, ok := parseHex(s, i+2, width)
			if !ok {
				return s, &EscapeDecodeError{Offset: i, Reason: fmt.Sprintf("truncated \\%c escape", next)}
			}
			if r > utf8.MaxRune {
				return s, &EscapeDecodeError{Offset: i, Reason: "code point out of range"}
			}
			b.WriteRune(rune(r))
			i += 2 + width
			continue
		case 'N':
			return s, &EscapeDecodeError{Offset: i, Reason: "named escapes are not supported"}
		default:
			b.WriteByte('\\')
			b.WriteByte(next)
		}
		i += 2
	}
	return b.String(), nil
}

func hexWidth(c byte) int {
	switch c {
	case 'x':
		return 2
	case 'u':
		return 4
	default:
		return 8
	}
}

func parseHex(s string, start, width int) (int64, bool) {
	if start+width > len(s) {
		return 0, false
	}
	var v int64
	for _, c := range []byte(s[start : start+width]) {
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			return 0, false
		}
		v = v<<4 | int64(d)
	}
	return v, true
}

// TextNormalizer ist der Normalizer mit Logging für den Einsatz in Services und Handlern.
type TextNormalizer struct {
	logger *zap.Logger
}

func NewTextNormalizer(logger *zap.Logger) *TextNormalizer {
	return &TextNormalizer{logger: logger}
}

// Normalize arbeitet wie das paketweite Normalize, protokolliert aber Escape-Fallbacks.
func (tn *TextNormalizer) Normalize(text string) string {
	out, err := normalize(text)
	if err != nil {
		tn.logger.Debug("Escape-Dekodierung fehlgeschlagen, verwende Originaltext", zap.Error(err))
	}
	return out
}
