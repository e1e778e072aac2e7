package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"feeledger/internal/core"
)

// Row is one decoded data row keyed by its header column.
type Row map[string]string

// encodeSheet writes header and rows as text cells of a single-sheet workbook.
// A value longer than a cell can hold is an error, never a truncated cell.
func encodeSheet(header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header %s: %w", h, err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if n := utf8.RuneCountInString(v); n > excelize.TotalCellChars {
				return nil, core.Validation(columnName(header, c),
					fmt.Sprintf("cell %s holds %d characters, the limit is %d", cell, n, excelize.TotalCellChars))
			}
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return nil, fmt.Errorf("write cell %s: %w", cell, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func columnName(header []string, i int) string {
	if i < len(header) {
		return header[i]
	}
	return ""
}

// decodeSheet reads the first sheet of a workbook. Short rows are padded and
// fully blank rows are dropped.
func decodeSheet(data []byte) ([]Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(grid) == 0 {
		return nil, nil
	}

	header := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		header[i] = strings.TrimSpace(h)
	}

	rows := make([]Row, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		row := make(Row, len(header))
		blank := true
		for i, h := range header {
			if h == "" {
				continue
			}
			v := ""
			if i < len(cells) {
				v = cells[i]
			}
			if strings.TrimSpace(v) != "" {
				blank = false
			}
			row[h] = v
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

type entry struct {
	name string
	data []byte
}

// writeArchive bundles the entries into a zip, in order.
func writeArchive(entries []entry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

// readArchive returns the table documents in data keyed by table. Entries that
// are not table documents are returned in ignored. The declared uncompressed
// size of all entries may not exceed limit.
func readArchive(data []byte, limit int64) (docs map[Table][]byte, ignored []string, err error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, fmt.Errorf("open archive: %w", err)
	}

	var declared uint64
	for _, f := range zr.File {
		declared += f.UncompressedSize64
	}
	if limit > 0 && declared > uint64(limit) {
		return nil, nil, errDeclaredTooLarge{limit: limit, got: int64(declared)}
	}

	docs = make(map[Table][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		t, ok := TableForFile(f.Name)
		if !ok {
			ignored = append(ignored, f.Name)
			continue
		}
		b, err := readEntry(f, limit)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		docs[t] = b
	}
	return docs, ignored, nil
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := io.Reader(rc)
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(b)) > limit {
		return nil, errDeclaredTooLarge{limit: limit, got: int64(len(b))}
	}
	return b, nil
}

type errDeclaredTooLarge struct {
	limit, got int64
}

func (e errDeclaredTooLarge) Error() string {
	return fmt.Sprintf("archive expands to %d bytes, limit is %d", e.got, e.limit)
}
