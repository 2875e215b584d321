package store

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/geo"
	"github.com/cp2b/biogas-cli/internal/model"
)

// Column aliases seen across CP2B exports (Portuguese and English headers).
var (
	idAliases         = []string{"id", "codigo", "codigo_ibge", "cd_mun", "code"}
	nameAliases       = []string{"name", "nome", "municipio", "nm_mun"}
	latAliases        = []string{"lat", "latitude"}
	lonAliases        = []string{"lon", "lng", "longitude"}
	populationAliases = []string{"population", "populacao", "pop"}
)

// LoadCSV reads municipality records from a CSV export. Header matching is
// case- and accent-insensitive; every numeric column that is not a known
// field becomes a potential category. Rows with missing coordinates are
// kept with NaN coordinates so radius searches can skip them.
func LoadCSV(path string) ([]model.Municipality, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open csv %s", path)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]model.Municipality, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "store: read csv header")
	}
	cols := make([]string, len(header))
	for i, h := range header {
		cols[i] = geo.Normalize(h)
	}

	idCol := findColumn(cols, idAliases)
	nameCol := findColumn(cols, nameAliases)
	latCol := findColumn(cols, latAliases)
	lonCol := findColumn(cols, lonAliases)
	popCol := findColumn(cols, populationAliases)
	if idCol < 0 || nameCol < 0 {
		return nil, eris.Errorf("store: csv needs id and name columns, got %s",
			strings.Join(header, ","))
	}

	known := map[int]bool{idCol: true, nameCol: true}
	for _, c := range []int{latCol, lonCol, popCol} {
		if c >= 0 {
			known[c] = true
		}
	}

	var ms []model.Municipality
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "store: read csv row")
		}
		m := model.Municipality{
			ID:        strings.TrimSpace(rec[idCol]),
			Name:      strings.TrimSpace(rec[nameCol]),
			Lat:       math.NaN(),
			Lon:       math.NaN(),
			Potential: map[string]float64{},
		}
		if m.ID == "" || m.Name == "" {
			skipped++
			continue
		}
		if latCol >= 0 && lonCol >= 0 {
			lat, latErr := parseNumber(rec[latCol])
			lon, lonErr := parseNumber(rec[lonCol])
			if latErr == nil && lonErr == nil {
				m.Lat, m.Lon = lat, lon
			}
		}
		if popCol >= 0 {
			if pop, err := parseNumber(rec[popCol]); err == nil {
				m.Population = int64(pop)
			}
		}
		for i, v := range rec {
			if known[i] || i >= len(cols) {
				continue
			}
			if val, err := parseNumber(v); err == nil {
				m.Potential[cols[i]] = val
			}
		}
		ms = append(ms, m)
	}
	if skipped > 0 {
		zap.L().Warn("skipped csv rows without id or name", zap.Int("rows", skipped))
	}
	return ms, nil
}

func findColumn(cols []string, aliases []string) int {
	for i, c := range cols {
		for _, a := range aliases {
			if c == a {
				return i
			}
		}
	}
	return -1
}

// parseNumber accepts both "." and "," decimal separators.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.New("store: empty number")
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return strconv.ParseFloat(s, 64)
}
