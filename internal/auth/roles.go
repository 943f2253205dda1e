package auth

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"fichapro/models"
)

// RoleFor returns the user's role at the restaurant, or an empty string
// when no link exists. No link means no access; there is no fallback
// role.
func RoleFor(ctx context.Context, db *gorm.DB, userID, restaurantID uint) (string, error) {
	var link models.RestaurantRole
	err := db.WithContext(ctx).
		Where("user_id = ? AND restaurant_id = ?", userID, restaurantID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return link.Role, nil
}

// CanManage reports whether an actor may create, edit or delete catalog
// entities (ingredients, recipes, technical sheets) of a restaurant.
func CanManage(admin bool, role string) bool {
	if admin {
		return true
	}
	return role == models.RoleMaster || role == models.RoleEditor
}

// CanRead reports whether an actor may see a restaurant's records at
// all. Any role link grants read access.
func CanRead(admin bool, role string) bool {
	return admin || role != ""
}

// LinkedRestaurantIDs lists every restaurant the user holds a role at.
func LinkedRestaurantIDs(ctx context.Context, db *gorm.DB, userID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&models.RestaurantRole{}).
		Where("user_id = ?", userID).
		Pluck("restaurant_id", &ids).Error
	return ids, err
}
