package fetcher

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
	TrimSpace bool
	// ShiftJIS forces Shift_JIS decoding. Without it the input is sniffed:
	// anything that is not valid UTF-8 is decoded as Shift_JIS, which is
	// what spreadsheet exports on Japanese Windows produce.
	ShiftJIS bool
}

// sniffLen is how much input is inspected to guess the encoding.
const sniffLen = 64 * 1024

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads all rows from r. A UTF-8 byte order mark is dropped, rows may
// have varying field counts and blank rows are skipped.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	src, err := decodeReader(r, opts.ShiftJIS)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(src)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "csv: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}
		if blankRow(record) {
			continue
		}
		rows = append(rows, record)
	}
}

func decodeReader(r io.Reader, shiftJIS bool) (io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, eris.Wrap(err, "csv: read input")
	}

	if bytes.HasPrefix(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
		return br, nil
	}
	if shiftJIS || !validUTF8Prefix(head) {
		return transform.NewReader(br, japanese.ShiftJIS.NewDecoder()), nil
	}
	return br, nil
}

// validUTF8Prefix ignores a rune cut off by the sniff window.
func validUTF8Prefix(b []byte) bool {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return true
		}
		b = b[:len(b)-1]
	}
	return utf8.Valid(b)
}
