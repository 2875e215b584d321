package raster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legendYAML = `
3:
  name_pt: Floresta
  name_en: Forest
  color: "#1F8D49"
15:
  name_pt: Pastagem
  name_en: Pasture
  color: "#EDDE8E"
39:
  name_pt: Soja
  name_en: Soybean
  color: "#F5B3C8"
`

func TestLoadLegend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legend.yaml")
	require.NoError(t, os.WriteFile(path, []byte(legendYAML), 0o644))

	legend, err := LoadLegend(path)
	require.NoError(t, err)
	require.Len(t, legend, 3)

	assert.Equal(t, "Forest", legend.Name(3))
	assert.Equal(t, "Pastagem", legend[15].NamePT)
	assert.Equal(t, "#F5B3C8", legend.Color(39))
}

func TestLegend_Fallbacks(t *testing.T) {
	legend := Legend{15: {NameEN: "Pasture"}}

	assert.Equal(t, "Class_21", legend.Name(21))
	assert.Equal(t, "", legend.Color(21))

	// A nil legend still names everything.
	var none Legend
	assert.Equal(t, "Class_15", none.Name(15))
}

func TestLoadLegend_Missing(t *testing.T) {
	_, err := LoadLegend(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
