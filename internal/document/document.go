// Package document loads the text of QA documents from plain text, PDF and
// DOCX files.
package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/japanese"
)

// Load reads the file at path and returns its text. The format is chosen by
// extension; unknown extensions are read as plain text.
func Load(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrap(err, "document: read file")
	}
	return Decode(content, strings.ToLower(filepath.Ext(path)))
}

// Decode extracts text from content. ext includes the leading dot.
func Decode(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	default:
		return extractPlain(content)
	}
}

// extractPlain returns UTF-8 text as-is and decodes anything else as
// Shift_JIS.
func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	if utf8.Valid(content) {
		return string(content), nil
	}
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(content)
	if err != nil {
		return "", eris.Wrap(err, "document: decode shift_jis")
	}
	return string(out), nil
}
