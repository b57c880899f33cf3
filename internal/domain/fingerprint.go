package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a deterministic content hash of the table. Cell and
// header whitespace is trimmed and blank rows are ignored, so a CSV and an XLSX
// export of the same data share a fingerprint.
func Fingerprint(table RawTable) string {
	h := sha256.New()
	writeRow := func(cells []string) {
		for i, c := range cells {
			if i > 0 {
				h.Write([]byte{0x1f})
			}
			h.Write([]byte(strings.TrimSpace(c)))
		}
		h.Write([]byte{0x1e})
	}

	writeRow(table.Header)
	for _, row := range table.Rows {
		if blankRow(row) {
			continue
		}
		writeRow(trimTrailingEmpty(row))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// trimTrailingEmpty drops empty trailing cells, which spreadsheet readers
// report inconsistently.
func trimTrailingEmpty(row []string) []string {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return row[:n]
}
