package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gorm.io/gorm"

	"fichapro/internal/config"
	"fichapro/internal/costing"
	"fichapro/internal/db"
	applog "fichapro/internal/log"
	"fichapro/models"
)

// reprice recomputes the derived cost, weight and suggested price
// columns for every recipe and technical sheet of one restaurant, or of
// all restaurants. Run it after changing a correction factor.
func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: reprice <restaurant-id> | --all")
		os.Exit(2)
	}

	if err := run(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "reprice failed: %v\n", err)
		os.Exit(1)
	}
}

func run(target string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applog.SetLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	database, err := db.Initialize(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	if target == "--all" {
		return repriceAll(ctx, database)
	}

	id, err := strconv.ParseUint(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid restaurant id %q", target)
	}
	return repriceOne(ctx, database, uint(id))
}

func repriceAll(ctx context.Context, database *gorm.DB) error {
	var ids []uint
	if err := database.WithContext(ctx).Model(&models.Restaurant{}).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("list restaurants: %w", err)
	}
	for _, id := range ids {
		if err := repriceOne(ctx, database, id); err != nil {
			return err
		}
	}
	applog.Info(ctx, "reprice complete", "restaurants", len(ids))
	return nil
}

func repriceOne(ctx context.Context, database *gorm.DB, id uint) error {
	var restaurant models.Restaurant
	if err := database.WithContext(ctx).First(&restaurant, id).Error; err != nil {
		return fmt.Errorf("load restaurant %d: %w", id, err)
	}
	if err := costing.RecalculateRestaurant(ctx, database, id); err != nil {
		return fmt.Errorf("reprice restaurant %d: %w", id, err)
	}
	applog.Info(ctx, "restaurant repriced", "id", id, "name", restaurant.Name)
	return nil
}
