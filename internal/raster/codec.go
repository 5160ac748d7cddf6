package raster

import (
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/zstd"
	"github.com/rotisserie/eris"
)

const (
	maskMagic   = "BMSK"
	maskVersion = 1
	// magic, version, cols, rows, srid, 4 transform floats
	maskHeaderLen = 4 + 1 + 4 + 4 + 4 + 4*8
)

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodeMask serializes a mask with its grid: a fixed header followed by the
// cells packed eight per byte, the whole compressed with zstd.
func EncodeMask(m *Mask) ([]byte, error) {
	if m == nil {
		return nil, eris.New("raster: encode nil mask")
	}
	g := m.Grid
	buf := make([]byte, maskHeaderLen, maskHeaderLen+(len(m.cells)+7)/8)
	copy(buf, maskMagic)
	buf[4] = maskVersion
	le := binary.LittleEndian
	le.PutUint32(buf[5:], uint32(g.Cols))
	le.PutUint32(buf[9:], uint32(g.Rows))
	le.PutUint32(buf[13:], uint32(g.SRID))
	for i, v := range []float64{g.Transform.OriginX, g.Transform.OriginY, g.Transform.PixelWidth, g.Transform.PixelHeight} {
		le.PutUint64(buf[17+8*i:], math.Float64bits(v))
	}

	packed := make([]byte, (len(m.cells)+7)/8)
	for i, c := range m.cells {
		if c {
			packed[i/8] |= 1 << (uint(i) % 8)
		}
	}
	buf = append(buf, packed...)
	return zstdEncoder.EncodeAll(buf, nil), nil
}

// DecodeMask reverses EncodeMask.
func DecodeMask(b []byte) (*Mask, error) {
	raw, err := zstdDecoder.DecodeAll(b, nil)
	if err != nil {
		return nil, eris.Wrap(err, "raster: decompress mask")
	}
	if len(raw) < maskHeaderLen || string(raw[:4]) != maskMagic {
		return nil, eris.New("raster: not an encoded mask")
	}
	if raw[4] != maskVersion {
		return nil, eris.Errorf("raster: unsupported mask version %d", raw[4])
	}
	le := binary.LittleEndian
	var tf [4]float64
	for i := range tf {
		tf[i] = math.Float64frombits(le.Uint64(raw[17+8*i:]))
	}
	g := Grid{
		Cols: int(le.Uint32(raw[5:])),
		Rows: int(le.Uint32(raw[9:])),
		SRID: int(le.Uint32(raw[13:])),
		Transform: GeoTransform{
			OriginX: tf[0], OriginY: tf[1], PixelWidth: tf[2], PixelHeight: tf[3],
		},
	}
	if err := g.Validate(); err != nil {
		return nil, eris.Wrap(err, "raster: decode mask")
	}
	packed := raw[maskHeaderLen:]
	if len(packed) != (g.Len()+7)/8 {
		return nil, eris.Errorf("raster: mask payload is %d bytes, want %d", len(packed), (g.Len()+7)/8)
	}
	m := NewMask(g)
	for i := range m.cells {
		m.cells[i] = packed[i/8]&(1<<(uint(i)%8)) != 0
	}
	return m, nil
}
