package raster

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ClassDef describes one land-use class of a legend (e.g. MapBiomas).
type ClassDef struct {
	NamePT string `yaml:"name_pt"`
	NameEN string `yaml:"name_en"`
	Color  string `yaml:"color"`
}

// Legend maps raster class codes to their definitions. A nil Legend is
// valid; every class then falls back to its generated name.
type Legend map[int]ClassDef

// LoadLegend reads a YAML legend file of the form:
//
//	15:
//	  name_pt: Pastagem
//	  name_en: Pasture
//	  color: "#FFD966"
func LoadLegend(path string) (Legend, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "raster: read legend %s", path)
	}
	var legend Legend
	if err := yaml.Unmarshal(raw, &legend); err != nil {
		return nil, eris.Wrapf(err, "raster: parse legend %s", path)
	}
	return legend, nil
}

// Name returns the English class name, falling back to "Class_<code>" for
// unmapped codes.
func (l Legend) Name(code int) string {
	if def, ok := l[code]; ok && def.NameEN != "" {
		return def.NameEN
	}
	return fmt.Sprintf("Class_%d", code)
}

// Color returns the legend color for a code, or "" when unmapped.
func (l Legend) Color(code int) string {
	return l[code].Color
}
