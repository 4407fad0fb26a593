package state

import (
	"context"

	"github.com/leapstack-labs/lensgrid/internal/inputs"
)

// LoadForm returns the stored inputs applied over defaults. stored reports
// whether anything had been saved.
func LoadForm(ctx context.Context, s Store, defaults inputs.Form) (form inputs.Form, stored bool, err error) {
	saved, err := s.LoadInputs(ctx)
	if err != nil {
		return defaults, false, err
	}
	return inputs.FromMap(defaults, saved), len(saved) > 0, nil
}

// SaveForm persists every field of f.
func SaveForm(ctx context.Context, s Store, f inputs.Form) error {
	return s.SaveInputs(ctx, f.Map())
}
