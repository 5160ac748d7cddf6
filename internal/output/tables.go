package output

import (
	"bytes"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/urban-sprawl/internal/model"
)

func statisticsCSV(rows []model.AreaStatistic) ([]byte, error) {
	b, err := csvutil.Marshal(rows)
	return b, eris.Wrap(err, "output: encode statistics csv")
}

func unitsCSV(rows []model.UnitStatistic) ([]byte, error) {
	b, err := csvutil.Marshal(rows)
	return b, eris.Wrap(err, "output: encode planning units csv")
}

// workbook renders the statistics and, when present, the planning-unit
// summary as sheets of one file.
func workbook(ds *Dataset) ([]byte, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("statistics")
	if err != nil {
		return nil, eris.Wrap(err, "output: xlsx add sheet")
	}
	header(sheet, "period", "category", "area_m2", "area_ha", "polygon_count")
	for _, s := range ds.Statistics {
		row := sheet.AddRow()
		row.AddCell().SetString(s.Period.String())
		row.AddCell().SetString(s.Category)
		row.AddCell().SetFloat(s.AreaM2)
		row.AddCell().SetFloat(s.AreaHa)
		row.AddCell().SetInt(s.PolygonCount)
	}

	if ds.UnitStatistics != nil {
		units, err := f.AddSheet("planning_units")
		if err != nil {
			return nil, eris.Wrap(err, "output: xlsx add sheet")
		}
		header(units, "period", "unit", "category", "area_m2", "area_ha", "polygon_count")
		for _, s := range ds.UnitStatistics {
			row := units.AddRow()
			row.AddCell().SetString(s.Period.String())
			row.AddCell().SetString(s.Unit)
			row.AddCell().SetString(s.Category)
			row.AddCell().SetFloat(s.AreaM2)
			row.AddCell().SetFloat(s.AreaHa)
			row.AddCell().SetInt(s.PolygonCount)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "output: xlsx write")
	}
	return buf.Bytes(), nil
}

func header(sheet *xlsx.Sheet, names ...string) {
	row := sheet.AddRow()
	for _, n := range names {
		row.AddCell().SetString(n)
	}
}
