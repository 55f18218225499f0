package analysis

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText returns the plain text of every page, cut to maxChars runes.
// The parser panics on some malformed files; that is reported as an error.
func ExtractPDFText(data []byte, maxChars int) (text string, truncated bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, truncated = "", false
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false, fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
		if maxChars > 0 && sb.Len() > maxChars*utf8.UTFMax {
			break
		}
	}

	text, truncated = Truncate(sb.String(), maxChars)
	return text, truncated, nil
}

// Truncate cuts s to at most maxChars runes. maxChars <= 0 keeps everything.
func Truncate(s string, maxChars int) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	n := 0
	for i := range s {
		if n == maxChars {
			return s[:i], true
		}
		n++
	}
	return s, false
}
