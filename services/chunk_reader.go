package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile       = errors.New("file has no data rows")
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// RawRow is one untyped source row plus its 1-based record number,
// kept only for error reporting.
type RawRow struct {
	Line  int
	Cells []string
}

// RowStream reads a source file in bounded row windows. The stream is
// lazy, finite and non-restartable; between windows control returns to
// the caller so cancellation and progress can interleave.
type RowStream struct {
	path string
	xlsx bool
}

// OpenRowStream prepares a stream for a CSV/semicolon-delimited text
// file or an XLSX workbook, dispatching on the file extension.
func OpenRowStream(path string) (*RowStream, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return &RowStream{path: path}, nil
	case ".xlsx":
		return &RowStream{path: path, xlsx: true}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}
}

// EstimateRows returns an upper-bound estimate of the data row count,
// cheap enough to run before any processing: a newline count for text
// files, the sheet dimension for workbooks.
func (s *RowStream) EstimateRows() (int, error) {
	if s.xlsx {
		return s.estimateXLSX()
	}
	f, err := os.Open(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	lines := 0
	read := 0
	var last byte
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			lines += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
			read += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
	}
	if read > 0 && last != '\n' {
		// An unterminated final line still holds a row.
		lines++
	}
	if lines == 0 {
		return 0, nil
	}
	return lines - 1, nil // minus the header line
}

func (s *RowStream) estimateXLSX() (int, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return 0, ErrEmptyFile
	}
	dim, err := f.GetSheetDimension(sheets[0])
	if err == nil {
		if _, end, ok := strings.Cut(dim, ":"); ok {
			digits := strings.TrimLeft(end, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
			if last, err := strconv.Atoi(digits); err == nil && last > 0 {
				return last - 1, nil
			}
		}
	}

	// Dimension missing or malformed: fall back to walking the rows.
	iter, err := f.Rows(sheets[0])
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	count := 0
	for iter.Next() {
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return count - 1, nil
}

// Stream reads the file once. headerFn receives the first row; chunkFn
// receives windows of at most chunkSize rows. Returning an error from
// either callback stops the stream immediately and propagates the error.
// The context is checked between windows, never mid-window.
func (s *RowStream) Stream(ctx context.Context, chunkSize int, headerFn func([]string) error, chunkFn func([]RawRow) error) error {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if s.xlsx {
		return s.streamXLSX(ctx, chunkSize, headerFn, chunkFn)
	}
	return s.streamCSV(ctx, chunkSize, headerFn, chunkFn)
}

func (s *RowStream) streamCSV(ctx context.Context, chunkSize int, headerFn func([]string) error, chunkFn func([]RawRow) error) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 128*1024)
	stripBOM(br)

	reader := csv.NewReader(br)
	reader.Comma = sniffDelimiter(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return ErrEmptyFile
		}
		return fmt.Errorf("read header: %w", err)
	}
	if err := headerFn(header); err != nil {
		return err
	}

	chunk := make([]RawRow, 0, chunkSize)
	line := 1 // header consumed
	for {
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			// A structurally broken record still occupies a row slot:
			// hand it to the caller empty so it is counted and rejected.
			chunk = append(chunk, RawRow{Line: line})
			continue
		}
		chunk = append(chunk, RawRow{Line: line, Cells: cells})

		if len(chunk) >= chunkSize {
			if err := s.flush(ctx, &chunk, chunkFn, chunkSize); err != nil {
				return err
			}
		}
	}
	if len(chunk) > 0 {
		return s.flush(ctx, &chunk, chunkFn, 0)
	}
	return nil
}

func (s *RowStream) streamXLSX(ctx context.Context, chunkSize int, headerFn func([]string) error, chunkFn func([]RawRow) error) error {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ErrEmptyFile
	}
	iter, err := f.Rows(sheets[0])
	if err != nil {
		return err
	}
	defer iter.Close()

	first := true
	chunk := make([]RawRow, 0, chunkSize)
	line := 0
	for iter.Next() {
		cells, err := iter.Columns()
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		line++
		if first {
			if err := headerFn(cells); err != nil {
				return err
			}
			first = false
			continue
		}
		chunk = append(chunk, RawRow{Line: line, Cells: cells})

		if len(chunk) >= chunkSize {
			if err := s.flush(ctx, &chunk, chunkFn, chunkSize); err != nil {
				return err
			}
		}
	}
	if first {
		return ErrEmptyFile
	}
	if len(chunk) > 0 {
		return s.flush(ctx, &chunk, chunkFn, 0)
	}
	return nil
}

func (s *RowStream) flush(ctx context.Context, chunk *[]RawRow, chunkFn func([]RawRow) error, nextCap int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := chunkFn(*chunk); err != nil {
		return err
	}
	*chunk = make([]RawRow, 0, nextCap)
	return nil
}

// sniffDelimiter inspects the first line and prefers a semicolon when it
// outnumbers commas there; lender exports commonly use either.
func sniffDelimiter(br *bufio.Reader) rune {
	peek, _ := br.Peek(4096)
	if i := bytes.IndexByte(peek, '\n'); i >= 0 {
		peek = peek[:i]
	}
	if bytes.Count(peek, []byte{';'}) > bytes.Count(peek, []byte{','}) {
		return ';'
	}
	return ','
}

func stripBOM(br *bufio.Reader) {
	if peek, err := br.Peek(3); err == nil && bytes.Equal(peek, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}
}
