package document

import (
	"archive/zip"
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

const docxBodyPath = "word/document.xml"

var (
	// docxParagraph matches one <w:p> element, including attributes.
	docxParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	// docxText matches <w:t>text</w:t> with any attributes.
	docxText = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
)

// extractDOCX returns the document body with one line per paragraph.
// Inspection tables in QA documents are paragraphs inside cells, so they
// come out one cell per line.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", eris.Wrap(err, "document: docx is not a zip archive")
	}

	var body []byte
	for _, f := range zr.File {
		if f.Name != docxBodyPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrapf(err, "document: open %s", f.Name)
		}
		body, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", eris.Wrapf(err, "document: read %s", f.Name)
		}
		break
	}
	if body == nil {
		return "", eris.Errorf("document: %s not found in docx", docxBodyPath)
	}

	var lines []string
	for _, para := range docxParagraph.FindAllString(string(body), -1) {
		var b strings.Builder
		for _, m := range docxText.FindAllStringSubmatch(para, -1) {
			b.WriteString(html.UnescapeString(m[1]))
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
