package store

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/fortuna/almanac/internal/fixture"
)

// utf8BOM lets spreadsheet tools pick the right encoding for team names.
const utf8BOM = "\ufeff"

type csvCodec struct{}

func (csvCodec) read(r io.Reader) (fixture.Dataset, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return fixture.Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	idx := indexHeader(head)

	ds := fixture.Dataset{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if isBlank(row) {
			continue
		}
		ds = append(ds, decodeRecord(row, idx))
	}
	return ds, nil
}

func (csvCodec) write(w io.Writer, ds fixture.Dataset) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range ds {
		if err := cw.Write(encodeRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
