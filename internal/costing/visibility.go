package costing

import (
	"context"

	"fichapro/models"
)

// Actor identifies who is asking for a cost figure: the global
// administrator flag plus the actor's role at the owning restaurant
// (empty when no link exists, which means no access).
type Actor struct {
	Admin bool
	Role  string
}

// CanViewCost reports whether the actor may see cost and price figures.
// Only global administrators and masters of the owning restaurant may.
func (a Actor) CanViewCost() bool {
	return a.Admin || a.Role == models.RoleMaster
}

// VisibleRecipeCost resolves the recipe's cost and withholds the figure
// from actors without cost visibility. The computation always runs; the
// gate only decides whether the caller gets to see the result.
func (r *Resolver) VisibleRecipeCost(ctx context.Context, recipeID uint, actor Actor) (*float64, error) {
	cost, err := r.RecipeCost(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	return gate(cost, actor), nil
}

// VisibleSheetCost is VisibleRecipeCost for technical sheets.
func (r *Resolver) VisibleSheetCost(ctx context.Context, sheetID uint, actor Actor) (*float64, error) {
	cost, err := r.SheetCost(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	return gate(cost, actor), nil
}

// Gate hides an already-computed figure from actors without cost
// visibility. Used when projecting persisted derived fields.
func Gate(value *float64, actor Actor) *float64 {
	if value == nil || !actor.CanViewCost() {
		return nil
	}
	return value
}

func gate(value float64, actor Actor) *float64 {
	if !actor.CanViewCost() {
		return nil
	}
	rounded := Round2(value)
	return &rounded
}
