package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// planFile is the YAML document shape for a plan catalog file.
type planFile struct {
	Plans []planSpec `yaml:"plans"`
}

type planSpec struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Tier        int               `yaml:"tier"`
	Limits      map[string]*int64 `yaml:"limits"` // omit or null = unlimited
	Features    []string          `yaml:"features"`
	Public      bool              `yaml:"public"`
	TrialDays   int               `yaml:"trial_days"`
	Price       Money             `yaml:"price"`
	Interval    BillingInterval   `yaml:"interval"`
}

type fileSource struct {
	path string
}

// NewFileSource returns a Source that reads plan definitions from a YAML
// file. The file is read on every Load, so a catalog reload picks up a
// redeployed file without process restart.
func NewFileSource(path string) Source {
	if path == "" {
		panic("catalog: file source path is required")
	}
	return &fileSource{path: path}
}

func (s *fileSource) Load(ctx context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	var doc planFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, fmt.Errorf("parse %s: %w", s.path, err))
	}

	plans := make(map[string]Plan, len(doc.Plans))
	for _, spec := range doc.Plans {
		limits := make(map[Resource]*int64, len(spec.Limits))
		for res, limit := range spec.Limits {
			limits[Resource(res)] = limit
		}
		features := make([]Feature, 0, len(spec.Features))
		for _, f := range spec.Features {
			features = append(features, Feature(f))
		}

		interval := spec.Interval
		if interval == "" {
			interval = BillingIntervalNone
		}

		plans[spec.ID] = Plan{
			ID:          spec.ID,
			Name:        spec.Name,
			Description: spec.Description,
			Tier:        spec.Tier,
			Limits:      limits,
			Features:    features,
			Public:      spec.Public,
			TrialDays:   spec.TrialDays,
			Price:       spec.Price,
			Interval:    interval,
		}
	}

	return plans, nil
}
