package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fichapro/models"
)

func TestRecipeItemCreatePropagatesOwner(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.2)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	ingredient := seedIngredient(t, db, restaurant.ID, "Tomato", 1000, 10)
	recipe := seedRecipe(t, db, restaurant.ID, "Sauce")

	ingredientID := ingredient.ID
	payload := recipeItemRequest{RecipeID: recipe.ID, IngredientID: &ingredientID, Quantity: 500, IC: 80, IPC: 90}
	req := authenticatedRequest(t, sm, master, http.MethodPost, "/api/recipe-items", payload)
	rr := httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var updated models.Recipe
	if err := db.First(&updated, recipe.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if updated.TotalCost == nil || *updated.TotalCost != 6.94 {
		t.Fatalf("expected persisted cost 6.94, got %+v", updated.TotalCost)
	}
	if updated.FinalWeight == nil || *updated.FinalWeight != 694.44 {
		t.Fatalf("expected persisted weight 694.44, got %+v", updated.FinalWeight)
	}
	if updated.RestaurantPrice == nil || *updated.RestaurantPrice != 8.33 {
		t.Fatalf("expected restaurant price 8.33, got %+v", updated.RestaurantPrice)
	}
	if updated.PlatformPrice == nil || *updated.PlatformPrice != 9.33 {
		t.Fatalf("expected platform price 9.33, got %+v", updated.PlatformPrice)
	}
}

func TestRecipeItemRejectsAmbiguousReference(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	ingredient := seedIngredient(t, db, restaurant.ID, "Tomato", 1000, 10)
	recipe := seedRecipe(t, db, restaurant.ID, "Sauce")
	other := seedRecipe(t, db, restaurant.ID, "Base")

	ingredientID := ingredient.ID
	otherID := other.ID

	both := recipeItemRequest{RecipeID: recipe.ID, IngredientID: &ingredientID, SubRecipeID: &otherID, Quantity: 100}
	req := authenticatedRequest(t, sm, master, http.MethodPost, "/api/recipe-items", both)
	rr := httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for both references, got %d", rr.Code)
	}

	neither := recipeItemRequest{RecipeID: recipe.ID, Quantity: 100}
	req = authenticatedRequest(t, sm, master, http.MethodPost, "/api/recipe-items", neither)
	rr = httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing reference, got %d", rr.Code)
	}

	zeroQty := recipeItemRequest{RecipeID: recipe.ID, IngredientID: &ingredientID, Quantity: 0}
	req = authenticatedRequest(t, sm, master, http.MethodPost, "/api/recipe-items", zeroQty)
	rr = httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero quantity, got %d", rr.Code)
	}
}

func TestRecipeItemRejectsCycles(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	parent := seedRecipe(t, db, restaurant.ID, "Parent")
	child := seedRecipe(t, db, restaurant.ID, "Child")
	childID := child.ID
	if err := db.Create(&models.RecipeItem{
		RecipeID: parent.ID, SubRecipeID: &childID,
		Quantity: 1, IC: 100, IPC: 100, ApplyAdjustment: true,
	}).Error; err != nil {
		t.Fatalf("failed to seed sub-recipe line: %v", err)
	}

	parentID := parent.ID
	selfRef := recipeItemRequest{RecipeID: parent.ID, SubRecipeID: &parentID, Quantity: 1}
	req := authenticatedRequest(t, sm, master, http.MethodPost, "/api/recipe-items", selfRef)
	rr := httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for self reference, got %d", rr.Code)
	}

	backEdge := recipeItemRequest{RecipeID: child.ID, SubRecipeID: &parentID, Quantity: 1}
	req = authenticatedRequest(t, sm, master, http.MethodPost, "/api/recipe-items", backEdge)
	rr = httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cycle-closing edge, got %d", rr.Code)
	}
}

func TestRecipeItemRejectsCrossRestaurantReference(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	mine := seedRestaurant(t, db, "Mine", 1.0)
	other := seedRestaurant(t, db, "Other", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, mine.ID, models.RoleMaster)

	foreign := seedIngredient(t, db, other.ID, "Imported", 1000, 50)
	recipe := seedRecipe(t, db, mine.ID, "Sauce")

	foreignID := foreign.ID
	payload := recipeItemRequest{RecipeID: recipe.ID, IngredientID: &foreignID, Quantity: 100}
	req := authenticatedRequest(t, sm, master, http.MethodPost, "/api/recipe-items", payload)
	rr := httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for cross-restaurant reference, got %d", rr.Code)
	}
}

func TestRecipeItemMoveRecalculatesBothOwners(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	ingredient := seedIngredient(t, db, restaurant.ID, "Tomato", 1000, 10)
	source := seedRecipe(t, db, restaurant.ID, "Source")
	target := seedRecipe(t, db, restaurant.ID, "Target")

	ingredientID := ingredient.ID
	item := models.RecipeItem{
		RecipeID: source.ID, IngredientID: &ingredientID,
		Quantity: 500, IC: 100, IPC: 100, ApplyAdjustment: true,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to seed recipe item: %v", err)
	}

	payload := recipeItemRequest{RecipeID: target.ID, IngredientID: &ingredientID, Quantity: 500}
	req := authenticatedRequest(t, sm, master, http.MethodPut, "/api/recipe-items/"+itoa(item.ID), payload)
	rr := httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var sourceRecipe, targetRecipe models.Recipe
	if err := db.First(&sourceRecipe, source.ID).Error; err != nil {
		t.Fatalf("failed to reload source: %v", err)
	}
	if err := db.First(&targetRecipe, target.ID).Error; err != nil {
		t.Fatalf("failed to reload target: %v", err)
	}
	if sourceRecipe.TotalCost == nil || *sourceRecipe.TotalCost != 0 {
		t.Fatalf("expected source cost 0 after move, got %+v", sourceRecipe.TotalCost)
	}
	if targetRecipe.TotalCost == nil || *targetRecipe.TotalCost != 5.00 {
		t.Fatalf("expected target cost 5.00 after move, got %+v", targetRecipe.TotalCost)
	}
}

func TestRecipeItemDeletePropagates(t *testing.T) {
	sm, smCleanup := withTestSessionManager(t)
	t.Cleanup(smCleanup)
	db, dbCleanup := withTestDatabase(t)
	t.Cleanup(dbCleanup)

	restaurant := seedRestaurant(t, db, "Cantina", 1.0)
	master := seedUser(t, db, "master@example.com", false)
	seedRole(t, db, master.ID, restaurant.ID, models.RoleMaster)

	ingredient := seedIngredient(t, db, restaurant.ID, "Tomato", 1000, 10)
	recipe := seedRecipe(t, db, restaurant.ID, "Sauce")

	ingredientID := ingredient.ID
	item := models.RecipeItem{
		RecipeID: recipe.ID, IngredientID: &ingredientID,
		Quantity: 500, IC: 100, IPC: 100, ApplyAdjustment: true,
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to seed recipe item: %v", err)
	}

	req := authenticatedRequest(t, sm, master, http.MethodDelete, "/api/recipe-items/"+itoa(item.ID), nil)
	rr := httptest.NewRecorder()
	RecipeItemResource(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}

	var updated models.Recipe
	if err := db.First(&updated, recipe.ID).Error; err != nil {
		t.Fatalf("failed to reload recipe: %v", err)
	}
	if updated.TotalCost == nil || *updated.TotalCost != 0 {
		t.Fatalf("expected cost 0 after line delete, got %+v", updated.TotalCost)
	}
}
