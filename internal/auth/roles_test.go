package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fichapro/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Restaurant{}, &models.RestaurantRole{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestRoleForMissingLinkMeansNoAccess(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := models.User{Email: "chef@example.com", PasswordHash: "hash"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	linked := models.Restaurant{Name: "Linked", TaxID: "1"}
	other := models.Restaurant{Name: "Other", TaxID: "2"}
	for _, r := range []*models.Restaurant{&linked, &other} {
		if err := db.Create(r).Error; err != nil {
			t.Fatalf("failed to create restaurant: %v", err)
		}
	}
	if err := db.Create(&models.RestaurantRole{UserID: user.ID, RestaurantID: linked.ID, Role: models.RoleMaster}).Error; err != nil {
		t.Fatalf("failed to create role link: %v", err)
	}

	role, err := RoleFor(ctx, db, user.ID, linked.ID)
	if err != nil {
		t.Fatalf("RoleFor returned error: %v", err)
	}
	if role != models.RoleMaster {
		t.Fatalf("role = %q, want %q", role, models.RoleMaster)
	}

	role, err = RoleFor(ctx, db, user.ID, other.ID)
	if err != nil {
		t.Fatalf("RoleFor returned error: %v", err)
	}
	if role != "" {
		t.Fatalf("role = %q, want empty (no access)", role)
	}

	ids, err := LinkedRestaurantIDs(ctx, db, user.ID)
	if err != nil {
		t.Fatalf("LinkedRestaurantIDs returned error: %v", err)
	}
	if len(ids) != 1 || ids[0] != linked.ID {
		t.Fatalf("linked restaurants = %v, want [%d]", ids, linked.ID)
	}
}

func TestCanManage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		admin bool
		role  string
		want  bool
	}{
		{"administrator", true, "", true},
		{"master", false, models.RoleMaster, true},
		{"editor", false, models.RoleEditor, true},
		{"ordinary", false, models.RoleOrdinary, false},
		{"no link", false, "", false},
	}

	for _, tt := range tests {
		if got := CanManage(tt.admin, tt.role); got != tt.want {
			t.Fatalf("%s: CanManage = %t, want %t", tt.name, got, tt.want)
		}
	}
}

func TestCanRead(t *testing.T) {
	t.Parallel()

	if !CanRead(true, "") {
		t.Fatal("administrator must read everything")
	}
	if !CanRead(false, models.RoleOrdinary) {
		t.Fatal("any role link grants read access")
	}
	if CanRead(false, "") {
		t.Fatal("missing link must mean no access")
	}
}
