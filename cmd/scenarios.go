package main

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cp2b/biogas-cli/internal/scenario"
)

var scenariosFile string

// loadScenarios reads the scenario set from the configured YAML file.
func loadScenarios() (scenario.Set, error) {
	raw, err := os.ReadFile(scenariosFile)
	if err != nil {
		return nil, eris.Wrapf(err, "cmd: read scenarios %s", scenariosFile)
	}
	var set scenario.Set
	if err := yaml.Unmarshal(raw, &set); err != nil {
		return nil, eris.Wrapf(err, "cmd: parse scenarios %s", scenariosFile)
	}
	return set, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&scenariosFile, "scenarios-file", "configs/scenarios.yaml", "availability scenarios YAML")
}
