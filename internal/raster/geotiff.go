// Package raster implements land-use zonal statistics over GeoTIFF
// rasters: it opens a raster, masks it against a circular buffer around
// the analysis center, and aggregates per-class pixel counts into hectare
// areas and percentages.
//
// The GeoTIFF reader is intentionally small: pixel decoding is delegated
// to golang.org/x/image/tiff while the georeferencing tags (pixel scale,
// tiepoint, EPSG code, nodata marker) are read by a minimal IFD scanner.
// BigTIFF and tiled layouts beyond what x/image/tiff decodes are not
// supported.
package raster

import (
	"encoding/binary"
	"image"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/image/tiff"
)

// TIFF tag and type constants used by the IFD scanner.
const (
	tagModelPixelScale = 33550
	tagModelTiepoint   = 33922
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113

	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// GeoTIFF geokeys carrying the CRS code.
const (
	geoKeyGeographicType = 2048
	geoKeyProjectedCS    = 3072
)

// Raster is a fully decoded single-band raster with its georeferencing.
// The underlying file is read and closed inside Open; a Raster holds no
// open resources.
type Raster struct {
	Width  int
	Height int

	// Affine georeferencing: coordinate of the top-left corner of pixel
	// (0,0) and the per-pixel scale, in CRS units.
	OriginX float64
	OriginY float64
	ScaleX  float64
	ScaleY  float64

	EPSG   int
	NoData *float64
	Source string

	img image.Image
}

// Open reads a GeoTIFF from disk. The file handle is released before Open
// returns, on every path.
func Open(path string) (*Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: open %s", path)
	}
	defer func() { _ = f.Close() }()

	tags, err := scanIFD(f)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: scan tags %s", path)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, eris.Wrap(err, "raster: seek")
	}
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: decode pixels %s", path)
	}

	r := &Raster{
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
		EPSG:   tags.epsg,
		NoData: tags.noData,
		Source: path,
		img:    img,
	}

	if len(tags.pixelScale) >= 2 {
		r.ScaleX = tags.pixelScale[0]
		r.ScaleY = tags.pixelScale[1]
	}
	// ModelTiepoint maps raster point (i,j,k) to model point (x,y,z);
	// the common single tiepoint anchors pixel (0,0) at the top-left.
	if len(tags.tiepoint) >= 6 {
		r.OriginX = tags.tiepoint[3] - tags.tiepoint[0]*r.ScaleX
		r.OriginY = tags.tiepoint[4] + tags.tiepoint[1]*r.ScaleY
	}

	if r.ScaleX <= 0 || r.ScaleY <= 0 {
		return nil, eris.Errorf("raster: %s has no pixel scale, not a GeoTIFF", path)
	}
	if r.EPSG == 0 {
		zap.L().Warn("raster: no CRS geokey, assuming EPSG:4326",
			zap.String("path", path))
		r.EPSG = 4326
	}

	return r, nil
}

// ValueAt returns the band value at pixel (col, row). The second return is
// false when the pixel is out of bounds, carries the nodata value, or the
// sample type is unsupported.
func (r *Raster) ValueAt(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= r.Width || row >= r.Height {
		return 0, false
	}

	var v float64
	switch img := r.img.(type) {
	case *image.Gray:
		v = float64(img.GrayAt(col, row).Y)
	case *image.Gray16:
		v = float64(img.Gray16At(col, row).Y)
	case *image.Paletted:
		v = float64(img.ColorIndexAt(col, row))
	default:
		return 0, false
	}

	if r.NoData != nil && v == *r.NoData {
		return 0, false
	}
	return v, true
}

// PixelCenter returns the CRS coordinate of the center of pixel (col, row).
func (r *Raster) PixelCenter(col, row int) (x, y float64) {
	x = r.OriginX + (float64(col)+0.5)*r.ScaleX
	y = r.OriginY - (float64(row)+0.5)*r.ScaleY
	return x, y
}

// Window converts a CRS-space bounding box into a clamped pixel window.
// The returned window is empty (c0 >= c1 or r0 >= r1) when the box does
// not intersect the raster.
func (r *Raster) Window(minX, minY, maxX, maxY float64) (c0, r0, c1, r1 int) {
	c0 = int(math.Floor((minX - r.OriginX) / r.ScaleX))
	c1 = int(math.Ceil((maxX - r.OriginX) / r.ScaleX))
	r0 = int(math.Floor((r.OriginY - maxY) / r.ScaleY))
	r1 = int(math.Ceil((r.OriginY - minY) / r.ScaleY))

	c0 = max(c0, 0)
	r0 = max(r0, 0)
	c1 = min(c1, r.Width)
	r1 = min(r1, r.Height)
	return c0, r0, c1, r1
}

// geoTags holds the raw georeferencing tags pulled from the first IFD.
type geoTags struct {
	pixelScale []float64
	tiepoint   []float64
	epsg       int
	noData     *float64
}

// scanIFD walks the first IFD of a classic TIFF and extracts the GeoTIFF
// tags the decoder in x/image/tiff does not expose.
func scanIFD(f io.ReadSeeker) (*geoTags, error) {
	var header [8]byte
	if _, err := io.ReadFull(f, header[:]); err != nil {
		return nil, eris.Wrap(err, "read header")
	}

	var order binary.ByteOrder
	switch string(header[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, eris.New("not a TIFF file")
	}
	if order.Uint16(header[2:4]) != 42 {
		return nil, eris.New("unsupported TIFF variant")
	}

	ifdOffset := int64(order.Uint32(header[4:8]))
	if _, err := f.Seek(ifdOffset, io.SeekStart); err != nil {
		return nil, eris.Wrap(err, "seek IFD")
	}

	var countBuf [2]byte
	if _, err := io.ReadFull(f, countBuf[:]); err != nil {
		return nil, eris.Wrap(err, "read IFD count")
	}
	n := int(order.Uint16(countBuf[:]))

	entries := make([]byte, n*12)
	if _, err := io.ReadFull(f, entries); err != nil {
		return nil, eris.Wrap(err, "read IFD entries")
	}

	tags := &geoTags{}
	for i := 0; i < n; i++ {
		e := entries[i*12 : i*12+12]
		tag := order.Uint16(e[0:2])
		typ := order.Uint16(e[2:4])
		count := order.Uint32(e[4:8])

		switch tag {
		case tagModelPixelScale:
			vals, err := readDoubles(f, order, e, typ, count)
			if err != nil {
				return nil, eris.Wrap(err, "read pixel scale")
			}
			tags.pixelScale = vals

		case tagModelTiepoint:
			vals, err := readDoubles(f, order, e, typ, count)
			if err != nil {
				return nil, eris.Wrap(err, "read tiepoint")
			}
			tags.tiepoint = vals

		case tagGeoKeyDirectory:
			keys, err := readShorts(f, order, e, typ, count)
			if err != nil {
				return nil, eris.Wrap(err, "read geokeys")
			}
			tags.epsg = epsgFromGeoKeys(keys)

		case tagGDALNoData:
			s, err := readASCII(f, order, e, typ, count)
			if err != nil {
				return nil, eris.Wrap(err, "read nodata")
			}
			if v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
				tags.noData = &v
			}
		}
	}

	return tags, nil
}

// epsgFromGeoKeys pulls the CRS code out of a GeoKeyDirectory short array.
// A projected CS key takes precedence over a geographic one.
func epsgFromGeoKeys(keys []uint16) int {
	if len(keys) < 4 {
		return 0
	}
	numKeys := int(keys[3])

	var geographic, projected int
	for i := 0; i < numKeys; i++ {
		base := 4 + i*4
		if base+3 >= len(keys) {
			break
		}
		keyID, tagLoc, value := keys[base], keys[base+1], keys[base+3]
		if tagLoc != 0 {
			continue // value stored in another tag, not inline
		}
		switch keyID {
		case geoKeyGeographicType:
			geographic = int(value)
		case geoKeyProjectedCS:
			projected = int(value)
		}
	}

	if projected != 0 {
		return projected
	}
	return geographic
}

func readDoubles(f io.ReadSeeker, order binary.ByteOrder, entry []byte, typ uint16, count uint32) ([]float64, error) {
	if typ != typeDouble {
		return nil, eris.Errorf("unexpected type %d for double tag", typ)
	}
	raw, err := readTagData(f, order, entry, int(count)*8)
	if err != nil {
		return nil, err
	}
	vals := make([]float64, count)
	for i := range vals {
		vals[i] = math.Float64frombits(order.Uint64(raw[i*8 : i*8+8]))
	}
	return vals, nil
}

func readShorts(f io.ReadSeeker, order binary.ByteOrder, entry []byte, typ uint16, count uint32) ([]uint16, error) {
	if typ != typeShort {
		return nil, eris.Errorf("unexpected type %d for short tag", typ)
	}
	if count <= 2 {
		vals := make([]uint16, count)
		for i := range vals {
			vals[i] = order.Uint16(entry[8+i*2 : 10+i*2])
		}
		return vals, nil
	}
	raw, err := readTagData(f, order, entry, int(count)*2)
	if err != nil {
		return nil, err
	}
	vals := make([]uint16, count)
	for i := range vals {
		vals[i] = order.Uint16(raw[i*2 : i*2+2])
	}
	return vals, nil
}

func readASCII(f io.ReadSeeker, order binary.ByteOrder, entry []byte, typ uint16, count uint32) (string, error) {
	if typ != typeASCII {
		return "", eris.Errorf("unexpected type %d for ascii tag", typ)
	}
	var raw []byte
	if count <= 4 {
		raw = entry[8 : 8+count]
	} else {
		var err error
		raw, err = readTagData(f, order, entry, int(count))
		if err != nil {
			return "", err
		}
	}
	return strings.TrimRight(string(raw), "\x00"), nil
}

// readTagData fetches out-of-line tag data from the offset in the entry's
// value slot, restoring the read position afterwards is not needed because
// the IFD entries were already buffered.
func readTagData(f io.ReadSeeker, order binary.ByteOrder, entry []byte, size int) ([]byte, error) {
	offset := int64(order.Uint32(entry[8:12]))
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, eris.Wrap(err, "seek tag data")
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, eris.Wrap(err, "read tag data")
	}
	return raw, nil
}
