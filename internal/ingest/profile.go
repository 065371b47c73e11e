package ingest

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"ckc/internal/errors"
	"ckc/internal/model"
)

// Profile carries per-run signal tuning loaded from a TOML file: the
// combination coefficients and optional quality thresholds.
type Profile struct {
	Coefficients map[string]float64 `toml:"coefficients"`
	Thresholds   struct {
		MinCohesion float64 `toml:"minCohesion"`
		MaxCoupling float64 `toml:"maxCoupling"`
	} `toml:"thresholds"`
}

// LoadProfile reads a TOML signal profile. Coefficients must name known
// signals and be non-negative; signals missing from the file keep their
// defaults.
func LoadProfile(path string) (*Profile, map[model.SignalKind]float64, error) {
	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return nil, nil, errors.Wrap(errors.InternalError, "parsing profile "+path, err)
	}

	coeffs := map[model.SignalKind]float64{
		model.SignalDependency: 1.0,
		model.SignalDataFlow:   0.8,
		model.SignalTemporal:   0.6,
		model.SignalSemantic:   0.4,
	}
	for name, c := range p.Coefficients {
		sig, err := parseSignal(name)
		if err != nil {
			return nil, nil, errors.Wrap(errors.InternalError, path, err)
		}
		if c < 0 {
			return nil, nil, errors.New(errors.InternalError,
				fmt.Sprintf("%s: coefficient for %s is negative", path, name))
		}
		coeffs[sig] = c
	}
	return &p, coeffs, nil
}
