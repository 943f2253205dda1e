package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/gorm"

	"fichapro/models"
)

func seedRecipeWithIngredientLine(t *testing.T, db *gorm.DB, restaurantID uint) *models.Recipe {
	t.Helper()
	ingredient := seedIngredient(t, db, restaurantID, "Tomato", 1000, 10)
	recipe := seedRecipe(t, db, restaurantID, "Sauce")
	ingredientID := ingredient.ID
	if err := db.Create(&models.RecipeItem{
		RecipeID: recipe.ID, IngredientID: &ingredientID,
		Quantity: 500, IC: 80, IPC: 90, ApplyAdjustment: true,
	}).Error; err != nil {
		t.Fatalf("failed to seed recipe item: %v", err)
	}
	return recipe
}

func TestRecipeShowGatesCostByRole(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.2)
	recipe := seedRecipeWithIngredientLine(t, db, restaurant.ID)

	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)
	editor := seedUser(t, db, "editor@example.com", false)
	seedRole(t, db, editor.ID, restaurant.ID, models.RoleEditor)
	admin := seedUser(t, db, "admin@example.com", true)

	cases := []struct {
		name    string
		user    *models.User
		visible bool
	}{
		{"master sees cost", master, true},
		{"admin sees cost", admin, true},
		{"editor cost hidden", editor, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authenticatedRequest(t, sm, tc.user, http.MethodGet, "/api/recipes/"+itoa(recipe.ID), nil)
			rr := httptest.NewRecorder()
			RecipeResource(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
			}

			var response recipeResponse
			decodeResponse(t, rr, &response)
			if tc.visible {
				if response.TotalCost == nil || *response.TotalCost != 6.94 {
					t.Fatalf("expected cost 6.94, got %+v", response.TotalCost)
				}
				if response.RestaurantPrice == nil || *response.RestaurantPrice != 8.33 {
					t.Fatalf("expected restaurant price 8.33, got %+v", response.RestaurantPrice)
				}
				if response.PlatformPrice == nil || *response.PlatformPrice != 9.33 {
					t.Fatalf("expected platform price 9.33, got %+v", response.PlatformPrice)
				}
			} else {
				if response.TotalCost != nil || response.RestaurantPrice != nil || response.PlatformPrice != nil {
					t.Fatalf("expected cost figures hidden, got %+v", response)
				}
			}
			// Weight stays visible regardless of role.
			if response.FinalWeight != 694.44 {
				t.Fatalf("expected final weight 694.44, got %v", response.FinalWeight)
			}
		})
	}
}

func TestRecipeCreateAndYieldLabel(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	payload := recipeRequest{RestaurantID: restaurant.ID, Name: "Stock"}
	req := authenticatedRequest(t, sm, master, http.MethodPost, "/api/recipes", payload)
	rr := httptest.NewRecorder()
	RecipeResource(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var response recipeResponse
	decodeResponse(t, rr, &response)
	if response.Yield != "not calculated" {
		t.Fatalf("expected yield label for empty recipe, got %q", response.Yield)
	}
	if response.TotalCost == nil || *response.TotalCost != 0 {
		t.Fatalf("expected zero cost for empty recipe, got %+v", response.TotalCost)
	}
}

func TestRecipeUpdateKeepsYieldOverride(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)
	recipe := seedRecipeWithIngredientLine(t, db, restaurant.ID)

	override := 1000.0
	payload := recipeRequest{Name: "Sauce", YieldWeight: &override}
	req := authenticatedRequest(t, sm, master, http.MethodPut, "/api/recipes/"+itoa(recipe.ID), payload)
	rr := httptest.NewRecorder()
	RecipeResource(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var response recipeResponse
	decodeResponse(t, rr, &response)
	if response.FinalWeight != 1000 {
		t.Fatalf("expected yield override to win, got %v", response.FinalWeight)
	}
	if response.Yield != "1000.00g" {
		t.Fatalf("expected yield label from override weight, got %q", response.Yield)
	}
}

func TestRecipeDeleteRepropagatesOwners(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	sub := seedRecipeWithIngredientLine(t, db, restaurant.ID)
	parent := seedRecipe(t, db, restaurant.ID, "Plate Base")
	subID := sub.ID
	if err := db.Create(&models.RecipeItem{
		RecipeID: parent.ID, SubRecipeID: &subID,
		Quantity: 2, IC: 100, IPC: 100, ApplyAdjustment: true,
	}).Error; err != nil {
		t.Fatalf("failed to seed sub-recipe line: %v", err)
	}

	req := authenticatedRequest(t, sm, master, http.MethodDelete, "/api/recipes/"+itoa(subID), nil)
	rr := httptest.NewRecorder()
	RecipeResource(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}

	var updated models.Recipe
	if err := db.First(&updated, parent.ID).Error; err != nil {
		t.Fatalf("failed to reload parent: %v", err)
	}
	if updated.TotalCost == nil || *updated.TotalCost != 0 {
		t.Fatalf("expected parent cost 0 after sub-recipe delete, got %+v", updated.TotalCost)
	}

	var lineCount int64
	if err := db.Model(&models.RecipeItem{}).Where("sub_recipe_id = ?", subID).Count(&lineCount).Error; err != nil || lineCount != 0 {
		t.Fatalf("expected referencing lines removed, count=%d err=%v", lineCount, err)
	}
}
