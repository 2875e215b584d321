package raster

import (
	"encoding/binary"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// tiffSpec describes the synthetic GeoTIFF written by writeGeoTIFF.
type tiffSpec struct {
	width, height      int
	pixels             []uint8 // row-major, len = width*height
	scaleX, scaleY     float64 // CRS units per pixel
	originX, originY   float64 // top-left corner
	epsg               int
	noData             string // GDAL_NODATA ascii, "" to omit
}

// writeGeoTIFF writes a minimal single-strip uncompressed 8-bit GeoTIFF
// with georeferencing tags, little-endian, decodable by x/image/tiff.
func writeGeoTIFF(t *testing.T, path string, spec tiffSpec) {
	t.Helper()
	require.Len(t, spec.pixels, spec.width*spec.height)

	le := binary.LittleEndian
	var body []byte
	put16 := func(b []byte, v uint16) []byte { return le.AppendUint16(b, v) }
	put32 := func(b []byte, v uint32) []byte { return le.AppendUint32(b, v) }

	// Pixel data sits right after the 8-byte header.
	const pixelOffset = 8
	body = append(body, spec.pixels...)
	if len(body)%2 == 1 {
		body = append(body, 0)
	}

	scaleOffset := pixelOffset + len(body)
	for _, v := range []float64{spec.scaleX, spec.scaleY, 0} {
		body = le.AppendUint64(body, math.Float64bits(v))
	}

	tieOffset := pixelOffset + len(body)
	for _, v := range []float64{0, 0, 0, spec.originX, spec.originY, 0} {
		body = le.AppendUint64(body, math.Float64bits(v))
	}

	geoOffset := pixelOffset + len(body)
	geoKeys := []uint16{1, 1, 0, 1, geoKeyGeographicType, 0, 1, uint16(spec.epsg)}
	if spec.epsg != 4326 {
		geoKeys[4] = geoKeyProjectedCS
	}
	for _, v := range geoKeys {
		body = put16(body, v)
	}

	ifdOffset := pixelOffset + len(body)

	type entry struct {
		tag, typ uint16
		count    uint32
		value    uint32
		inline16 bool // value is a single SHORT packed into the low bytes
	}
	entries := []entry{
		{256, typeShort, 1, uint32(spec.width), true},
		{257, typeShort, 1, uint32(spec.height), true},
		{258, typeShort, 1, 8, true},
		{259, typeShort, 1, 1, true},
		{262, typeShort, 1, 1, true},
		{273, typeLong, 1, pixelOffset, false},
		{277, typeShort, 1, 1, true},
		{278, typeShort, 1, uint32(spec.height), true},
		{279, typeLong, 1, uint32(spec.width * spec.height), false},
		{339, typeShort, 1, 1, true},
		{tagModelPixelScale, typeDouble, 3, uint32(scaleOffset), false},
		{tagModelTiepoint, typeDouble, 6, uint32(tieOffset), false},
		{tagGeoKeyDirectory, typeShort, uint32(len(geoKeys)), uint32(geoOffset), false},
	}
	if spec.noData != "" {
		ascii := spec.noData + "\x00"
		require.LessOrEqual(t, len(ascii), 4, "inline nodata only in tests")
		var v uint32
		for i := 0; i < len(ascii); i++ {
			v |= uint32(ascii[i]) << (8 * i)
		}
		entries = append(entries, entry{tagGDALNoData, typeASCII, uint32(len(ascii)), v, false})
	}

	var ifd []byte
	ifd = put16(ifd, uint16(len(entries)))
	for _, e := range entries {
		ifd = put16(ifd, e.tag)
		ifd = put16(ifd, e.typ)
		ifd = put32(ifd, e.count)
		if e.inline16 {
			ifd = put16(ifd, uint16(e.value))
			ifd = put16(ifd, 0)
		} else {
			ifd = put32(ifd, e.value)
		}
	}
	ifd = put32(ifd, 0) // no next IFD

	var file []byte
	file = append(file, 'I', 'I')
	file = put16(file, 42)
	file = put32(file, uint32(ifdOffset))
	file = append(file, body...)
	file = append(file, ifd...)

	require.NoError(t, os.WriteFile(path, file, 0o644))
}

// uniformPixels returns a width*height buffer filled with value.
func uniformPixels(width, height int, value uint8) []uint8 {
	px := make([]uint8, width*height)
	for i := range px {
		px[i] = value
	}
	return px
}
