package store

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/fortuna/almanac/internal/fixture"
)

type xlsxCodec struct{}

func (xlsxCodec) read(r io.Reader) (fixture.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fixture.Dataset{}, nil
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}

	ds := fixture.Dataset{}
	if len(rows) == 0 {
		return ds, nil
	}
	idx := indexHeader(rows[0])
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		ds = append(ds, decodeRecord(row, idx))
	}
	return ds, nil
}

func (xlsxCodec) write(w io.Writer, ds fixture.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return err
	}

	for i, r := range ds {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			r.Season, r.League, r.Week, r.Date, r.Code,
			r.HomeTeam, r.AwayTeam, r.FullTimeScore, r.HalfTimeScore,
		}
		for _, p := range r.Odds.Values() {
			if p.Valid {
				row = append(row, p.Decimal.InexactFloat64())
			} else {
				row = append(row, nil)
			}
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}
