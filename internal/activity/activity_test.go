package activity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

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
	if err := db.AutoMigrate(&models.User{}, &models.ActivityRecord{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestRecordAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := models.User{Email: "actor@example.com", PasswordHash: "hash"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	Record(ctx, db, Entry{UserID: &user.ID, Role: models.RoleMaster, Kind: KindIngredient, Action: ActionCreated, Name: "Tomato", Description: "Ingredient Tomato created"})
	Record(ctx, db, Entry{UserID: &user.ID, Role: models.RoleMaster, Kind: KindRecipe, Action: ActionDeleted, Name: "Sauce", Description: "Recipe Sauce deleted"})

	all, err := List(ctx, db, Filter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	// Newest first.
	if all[0].Kind != KindRecipe {
		t.Fatalf("expected newest record first, got kind %q", all[0].Kind)
	}

	byKind, err := List(ctx, db, Filter{Kind: KindIngredient})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(byKind) != 1 || byKind[0].Name != "Tomato" {
		t.Fatalf("kind filter returned %+v", byKind)
	}

	byAction, err := List(ctx, db, Filter{Action: ActionDeleted})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(byAction) != 1 || byAction[0].Name != "Sauce" {
		t.Fatalf("action filter returned %+v", byAction)
	}

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	none, err := List(ctx, db, Filter{From: tomorrow})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no records from tomorrow on, got %d", len(none))
	}
}

func TestRecordSwallowsSinkFailures(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Drop the table so the insert fails; Record must not panic.
	if err := db.Migrator().DropTable(&models.ActivityRecord{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}
	Record(ctx, db, Entry{Kind: KindRestaurant, Action: ActionCreated, Name: "Ghost"})
}
