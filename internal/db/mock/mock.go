package mock

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	applog "fichapro/internal/log"
	"fichapro/models"
)

// New returns an in-memory sqlite database seeded with a demo restaurant,
// catalog and accounts, for running the server without postgres.
func New(ctx context.Context) (*gorm.DB, error) {
	applog.Debug(ctx, "initialising mock database")

	db, err := gorm.Open(sqlite.Open("file:fichapro-mock?mode=memory&cache=shared"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		PrepareStmt:                              true,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Restaurant{},
		&models.RestaurantRole{},
		&models.Ingredient{},
		&models.Recipe{},
		&models.RecipeItem{},
		&models.TechnicalSheet{},
		&models.TechnicalSheetItem{},
		&models.ActivityRecord{},
	); err != nil {
		return nil, err
	}

	if err := seed(db.WithContext(ctx)); err != nil {
		return nil, err
	}

	return db, nil
}

func seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Restaurant{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("demo1234"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.User{Email: "admin@fichapro.local", PasswordHash: string(hash), Name: "Admin", Admin: true}
	chef := models.User{Email: "chef@fichapro.local", PasswordHash: string(hash), Name: "Chef"}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	if err := db.Create(&chef).Error; err != nil {
		return err
	}

	restaurant := models.Restaurant{
		Name:             "Cantina Demo",
		TaxID:            "00.000.000/0001-00",
		Email:            "contato@cantinademo.local",
		Phone:            "+55 11 0000-0000",
		City:             "São Paulo",
		State:            "SP",
		CorrectionFactor: 1.20,
	}
	if err := db.Create(&restaurant).Error; err != nil {
		return err
	}

	if err := db.Create(&models.RestaurantRole{
		UserID:       chef.ID,
		RestaurantID: restaurant.ID,
		Role:         models.RoleMaster,
	}).Error; err != nil {
		return err
	}

	flour := models.Ingredient{RestaurantID: restaurant.ID, Name: "Wheat flour", ReferenceWeight: 1000, Unit: models.UnitGram, Price: 8.50}
	tomato := models.Ingredient{RestaurantID: restaurant.ID, Name: "Tomato", ReferenceWeight: 1000, Unit: models.UnitGram, Price: 6.00}
	for _, ingredient := range []*models.Ingredient{&flour, &tomato} {
		if err := db.Create(ingredient).Error; err != nil {
			return err
		}
	}

	sauce := models.Recipe{
		RestaurantID:     restaurant.ID,
		Name:             "Base tomato sauce",
		PrepTimeMinutes:  40,
		SuggestedPortion: "200g",
		Preparation:      "Simmer the tomatoes until reduced.",
	}
	if err := db.Create(&sauce).Error; err != nil {
		return err
	}

	if err := db.Create(&models.RecipeItem{
		RecipeID:        sauce.ID,
		IngredientID:    &tomato.ID,
		Quantity:        500,
		IC:              80,
		IPC:             90,
		ApplyAdjustment: true,
	}).Error; err != nil {
		return err
	}

	return nil
}
