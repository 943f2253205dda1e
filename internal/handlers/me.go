package handlers

import (
	"net/http"

	applog "fichapro/internal/log"
	"fichapro/models"
)

type roleLinkResponse struct {
	RestaurantID   uint   `json:"restaurant_id"`
	RestaurantName string `json:"restaurant_name,omitempty"`
	Role           string `json:"role"`
}

type meResponse struct {
	ID    uint               `json:"id"`
	Email string             `json:"email"`
	Name  string             `json:"name"`
	Admin bool               `json:"admin"`
	Roles []roleLinkResponse `json:"roles"`
}

// Me reports the authenticated identity and its restaurant role links.
func Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := requestUser(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	var links []models.RestaurantRole
	if err := database.WithContext(ctx).
		Preload("Restaurant").
		Where("user_id = ?", user.ID).
		Order("restaurant_id asc").
		Find(&links).Error; err != nil {
		applog.Error(ctx, "failed to load role links", "error", err, "user", user.ID)
		writeJSONError(w, http.StatusInternalServerError, "unable to load role links")
		return
	}

	roles := make([]roleLinkResponse, 0, len(links))
	for _, link := range links {
		entry := roleLinkResponse{RestaurantID: link.RestaurantID, Role: link.Role}
		if link.Restaurant != nil {
			entry.RestaurantName = link.Restaurant.Name
		}
		roles = append(roles, entry)
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Admin: user.Admin,
		Roles: roles,
	})
}
