package raster

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// defaultNoData is the label used for NODATA cells when the file's NODATA
// value does not fit in a Label.
const defaultNoData Label = 255

// ReadASCIIGrid parses an ESRI ASCII grid of integer class values. The
// format carries no CRS, so srid is supplied by the caller.
func ReadASCIIGrid(r io.Reader, srid int) (*ClassificationRaster, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	sc.Split(bufio.ScanWords)

	// A stream that fails mid-token leaves a partial last token; report the
	// read error rather than what the fragment fails to parse as.
	fail := func(err error) error {
		if rerr := sc.Err(); rerr != nil {
			return eris.Wrap(rerr, "raster: read ascii grid")
		}
		return err
	}

	header := make(map[string]float64, 6)
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = key
			break
		}
		if !sc.Scan() {
			return nil, fail(eris.Errorf("raster: ascii grid header %q has no value", key))
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fail(eris.Wrapf(err, "raster: ascii grid header %q", key))
		}
		header[key] = v
	}
	if err := fail(nil); err != nil {
		return nil, err
	}

	cols, rows := int(header["ncols"]), int(header["nrows"])
	dx, dy := header["cellsize"], header["cellsize"]
	if v, ok := header["dx"]; ok {
		dx = v
	}
	if v, ok := header["dy"]; ok {
		dy = v
	}

	var xll, yll float64
	switch {
	case has(header, "xllcorner") && has(header, "yllcorner"):
		xll, yll = header["xllcorner"], header["yllcorner"]
	case has(header, "xllcenter") && has(header, "yllcenter"):
		xll, yll = header["xllcenter"]-dx/2, header["yllcenter"]-dy/2
	default:
		return nil, eris.New("raster: ascii grid missing lower-left corner")
	}
	grid := Grid{
		Cols: cols,
		Rows: rows,
		Transform: GeoTransform{
			OriginX:     xll,
			OriginY:     yll + float64(rows)*dy,
			PixelWidth:  dx,
			PixelHeight: dy,
		},
		SRID: srid,
	}
	if err := grid.Validate(); err != nil {
		return nil, err
	}

	var noData *Label
	noDataValue, hasNoData := header["nodata_value"]
	if hasNoData {
		l := defaultNoData
		if noDataValue >= 0 && noDataValue <= 255 && noDataValue == math.Trunc(noDataValue) {
			l = Label(noDataValue)
		}
		noData = &l
	}

	labels := make([]Label, 0, grid.Len())
	parse := func(tok string) error {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return eris.Wrapf(err, "raster: ascii grid cell %d", len(labels))
		}
		if hasNoData && v == noDataValue {
			labels = append(labels, *noData)
			return nil
		}
		if v < 0 || v > 255 || v != math.Trunc(v) {
			return eris.Errorf("raster: ascii grid cell %d has non-class value %g", len(labels), v)
		}
		labels = append(labels, Label(v))
		return nil
	}
	if first != "" {
		if err := parse(first); err != nil {
			return nil, err
		}
	}
	for sc.Scan() {
		if len(labels) == grid.Len() {
			return nil, eris.Errorf("raster: ascii grid has more than %d cells", grid.Len())
		}
		if err := parse(sc.Text()); err != nil {
			return nil, fail(err)
		}
	}
	if err := fail(nil); err != nil {
		return nil, err
	}
	return NewClassificationRaster(grid, labels, noData)
}

func has(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

// WriteASCIIGrid writes r in ESRI ASCII grid form. Non-square pixels are
// written with dx/dy.
func WriteASCIIGrid(w io.Writer, r *ClassificationRaster) error {
	bw := bufio.NewWriter(w)
	g := r.Grid
	minX, minY, _, _ := g.Extent()
	fmt.Fprintf(bw, "ncols %d\nnrows %d\n", g.Cols, g.Rows)
	fmt.Fprintf(bw, "xllcorner %s\nyllcorner %s\n", ftoa(minX), ftoa(minY))
	if g.Transform.PixelWidth == g.Transform.PixelHeight {
		fmt.Fprintf(bw, "cellsize %s\n", ftoa(g.Transform.PixelWidth))
	} else {
		fmt.Fprintf(bw, "dx %s\ndy %s\n", ftoa(g.Transform.PixelWidth), ftoa(g.Transform.PixelHeight))
	}
	if r.NoData != nil {
		fmt.Fprintf(bw, "NODATA_value %d\n", *r.NoData)
	}
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			if col > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.Itoa(int(r.At(col, row))))
		}
		bw.WriteByte('\n')
	}
	return eris.Wrap(bw.Flush(), "raster: write ascii grid")
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
