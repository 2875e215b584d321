package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/cp2b/biogas-cli/internal/model"
)

var (
	exportFormat   string
	exportOut      string
	exportAnalysis string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the municipality set or a saved catchment analysis",
	Long:  "Writes the full municipality set, or the municipalities of a saved catchment run (--analysis), to xlsx, shapefile or csv.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var ms []model.Municipality
		withDistance := false
		if exportAnalysis != "" {
			run, err := env.Store.GetAnalysis(ctx, exportAnalysis)
			if err != nil {
				return err
			}
			if run == nil {
				return eris.Errorf("cmd: analysis %s not found", exportAnalysis)
			}
			if run.Kind != model.AnalysisCatchment {
				return eris.Errorf("cmd: analysis %s is %s, only catchment runs export", exportAnalysis, run.Kind)
			}
			var result model.CatchmentResult
			if err := json.Unmarshal([]byte(run.Result), &result); err != nil {
				return eris.Wrapf(err, "cmd: decode analysis %s", exportAnalysis)
			}
			ms = result.Municipalities
			withDistance = true
		} else {
			if ms, err = env.loadMunicipalities(ctx); err != nil {
				return err
			}
		}

		switch exportFormat {
		case "xlsx":
			err = exportXLSX(ctx, ms, exportOut, withDistance)
		case "shp":
			err = exportShapefile(ctx, ms, exportOut, withDistance)
		case "csv":
			err = exportCSV(ctx, ms, exportOut, withDistance)
		default:
			return eris.Errorf("cmd: unknown export format %q", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("format", exportFormat),
			zap.String("file", exportOut),
			zap.Int("municipalities", len(ms)),
		)
		return nil
	},
}

// potentialColumns is the sorted union of categories across all records, so
// every export has a stable, complete column set.
func potentialColumns(ms []model.Municipality) []string {
	seen := map[string]bool{}
	for _, m := range ms {
		for k := range m.Potential {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

func baseHeader(withDistance bool) []string {
	h := []string{"id", "name", "lat", "lon", "population"}
	if withDistance {
		h = append(h, "distance_km")
	}
	return h
}

func exportXLSX(ctx context.Context, ms []model.Municipality, path string, withDistance bool) error {
	cols := potentialColumns(ms)

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Municipalities")
	if err != nil {
		return eris.Wrap(err, "cmd: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, h := range append(baseHeader(withDistance), cols...) {
		header.AddCell().Value = h
	}

	for _, m := range ms {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "cmd: export xlsx")
		}
		row := sheet.AddRow()
		row.AddCell().Value = m.ID
		row.AddCell().Value = m.Name
		if m.HasCoordinates() {
			row.AddCell().SetFloat(m.Lat)
			row.AddCell().SetFloat(m.Lon)
		} else {
			row.AddCell()
			row.AddCell()
		}
		row.AddCell().SetInt64(m.Population)
		if withDistance {
			row.AddCell().SetFloat(m.DistanceKM)
		}
		for _, c := range cols {
			row.AddCell().SetFloat(m.PotentialOf(c))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "cmd: save xlsx %s", path)
	}
	return nil
}

func exportShapefile(ctx context.Context, ms []model.Municipality, path string, withDistance bool) error {
	cols := potentialColumns(ms)

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "cmd: create shapefile %s", path)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.StringField("ID", 16),
		shp.StringField("NAME", 64),
		shp.NumberField("POP", 12),
	}
	if withDistance {
		fields = append(fields, shp.FloatField("DIST_KM", 12, 3))
	}
	for _, c := range cols {
		// DBF field names are capped at 10 chars.
		name := strings.ToUpper(c)
		if len(name) > 10 {
			name = name[:10]
		}
		fields = append(fields, shp.FloatField(name, 18, 2))
	}
	w.SetFields(fields)

	row := 0
	skipped := 0
	for _, m := range ms {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "cmd: export shapefile")
		}
		if !m.HasCoordinates() {
			skipped++
			continue
		}
		w.Write(&shp.Point{X: m.Lon, Y: m.Lat})
		vals := []any{m.ID, m.Name, int(m.Population)}
		if withDistance {
			vals = append(vals, m.DistanceKM)
		}
		for _, c := range cols {
			vals = append(vals, m.PotentialOf(c))
		}
		for i, v := range vals {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return eris.Wrapf(err, "cmd: shapefile attribute %d for %s", i, m.ID)
			}
		}
		row++
	}
	if skipped > 0 {
		zap.L().Warn("skipped municipalities without coordinates", zap.Int("count", skipped))
	}
	return nil
}

func exportCSV(ctx context.Context, ms []model.Municipality, path string, withDistance bool) error {
	cols := potentialColumns(ms)

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "cmd: create csv %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(append(baseHeader(withDistance), cols...)); err != nil {
		return eris.Wrap(err, "cmd: write csv header")
	}
	for _, m := range ms {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "cmd: export csv")
		}
		rec := []string{m.ID, m.Name, "", "", strconv.FormatInt(m.Population, 10)}
		if m.HasCoordinates() {
			rec[2] = strconv.FormatFloat(m.Lat, 'f', -1, 64)
			rec[3] = strconv.FormatFloat(m.Lon, 'f', -1, 64)
		}
		if withDistance {
			rec = append(rec, strconv.FormatFloat(m.DistanceKM, 'f', -1, 64))
		}
		for _, c := range cols {
			rec = append(rec, strconv.FormatFloat(m.PotentialOf(c), 'f', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "cmd: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "cmd: flush csv")
	}
	return nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "output format: xlsx, shp or csv")
	exportCmd.Flags().StringVar(&exportOut, "out", "municipalities.xlsx", "output file path")
	exportCmd.Flags().StringVar(&exportAnalysis, "analysis", "", "saved catchment analysis id to export")
	rootCmd.AddCommand(exportCmd)
}
