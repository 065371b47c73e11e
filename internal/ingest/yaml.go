package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ckc/internal/errors"
	"ckc/internal/model"
)

// edgeListFile is the YAML schema for hand-maintained or tool-emitted
// entity/edge lists.
type edgeListFile struct {
	Entities []struct {
		ID            string `yaml:"id"`
		Name          string `yaml:"name"`
		Kind          string `yaml:"kind"`
		Visibility    string `yaml:"visibility"`
		TokenEstimate int    `yaml:"tokenEstimate"`
	} `yaml:"entities"`
	Edges []struct {
		From   string  `yaml:"from"`
		To     string  `yaml:"to"`
		Signal string  `yaml:"signal"`
		Weight float64 `yaml:"weight"`
	} `yaml:"edges"`
}

// LoadEdgeList reads a YAML entity/edge list. Unknown signal kinds and
// negative weights are rejected up front; dangling endpoints are left for
// the graph builder, which reports and drops them.
func LoadEdgeList(path string) ([]model.Entity, []model.RawEdge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.StorageError, "reading edge list "+path, err)
	}

	var file edgeListFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, errors.Wrap(errors.InternalError, "parsing edge list "+path, err)
	}

	entities := make([]model.Entity, 0, len(file.Entities))
	for i, e := range file.Entities {
		if e.ID == "" {
			return nil, nil, errors.New(errors.InternalError,
				fmt.Sprintf("%s: entity %d has no id", path, i))
		}
		if e.TokenEstimate < 0 {
			return nil, nil, errors.New(errors.InternalError,
				fmt.Sprintf("%s: entity %s has a negative token estimate", path, e.ID))
		}
		kind := model.EntityKind(e.Kind)
		if e.Kind == "" {
			kind = model.KindUnknown
		}
		vis := model.Visibility(e.Visibility)
		if e.Visibility == "" {
			vis = model.VisibilityUnknown
		}
		entities = append(entities, model.Entity{
			ID:            e.ID,
			Name:          e.Name,
			Kind:          kind,
			Visibility:    vis,
			TokenEstimate: e.TokenEstimate,
		})
	}

	edges := make([]model.RawEdge, 0, len(file.Edges))
	for i, e := range file.Edges {
		signal, err := parseSignal(e.Signal)
		if err != nil {
			return nil, nil, errors.Wrap(errors.InternalError,
				fmt.Sprintf("%s: edge %d", path, i), err)
		}
		if e.Weight < 0 {
			return nil, nil, errors.New(errors.InternalError,
				fmt.Sprintf("%s: edge %d has a negative weight", path, i))
		}
		edges = append(edges, model.RawEdge{
			From: e.From, To: e.To, Signal: signal, Weight: e.Weight,
		})
	}

	return entities, edges, nil
}

func parseSignal(s string) (model.SignalKind, error) {
	for _, sig := range model.AllSignals {
		if string(sig) == s {
			return sig, nil
		}
	}
	return "", fmt.Errorf("unknown signal kind %q", s)
}
