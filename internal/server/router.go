package server

import (
	"context"
	"net/http"

	"fichapro/internal/handlers"
	applog "fichapro/internal/log"
)

func newRouter() http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")

	mux.HandleFunc("/healthz", handlers.Health)
	mux.HandleFunc("/signup", handlers.Signup)
	mux.HandleFunc("/login", handlers.Login)
	mux.HandleFunc("/logout", handlers.Logout)
	mux.HandleFunc("/api/token", handlers.IssueToken)

	protected := map[string]http.HandlerFunc{
		"/api/me":                handlers.Me,
		"/api/restaurants":       handlers.RestaurantResource,
		"/api/restaurants/":      handlers.RestaurantResource,
		"/api/ingredients":       handlers.IngredientResource,
		"/api/ingredients/":      handlers.IngredientResource,
		"/api/recipes":           handlers.RecipeResource,
		"/api/recipes/":          handlers.RecipeResource,
		"/api/recipe-items":      handlers.RecipeItemResource,
		"/api/recipe-items/":     handlers.RecipeItemResource,
		"/api/technical-sheets":  handlers.TechnicalSheetResource,
		"/api/technical-sheets/": handlers.TechnicalSheetResource,
		"/api/sheet-items":       handlers.SheetItemResource,
		"/api/sheet-items/":      handlers.SheetItemResource,
		"/api/roles":             handlers.RoleResource,
		"/api/roles/":            handlers.RoleResource,
		"/api/activity":          handlers.Activity,
	}
	for path, handler := range protected {
		mux.Handle(path, handlers.RequireAuthentication(handler))
	}

	applog.Debug(context.Background(), "http routes registered", "protected", len(protected))
	return mux
}
