package activity

import (
	"context"
	"time"

	"gorm.io/gorm"

	applog "fichapro/internal/log"
	"fichapro/models"
)

const (
	ActionCreated = "created"
	ActionEdited  = "edited"
	ActionDeleted = "deleted"
)

const (
	KindRestaurant     = "restaurant"
	KindIngredient     = "ingredient"
	KindRecipe         = "recipe"
	KindTechnicalSheet = "technical_sheet"
	KindUser           = "user"
)

// Entry is one audit event to append to the activity log.
type Entry struct {
	UserID      *uint
	Role        string
	Kind        string
	Action      string
	Name        string
	Description string
}

// Record appends the entry to the activity log. The log is a best-effort
// side channel: failures are logged and never propagate to the mutation
// that produced the event.
func Record(ctx context.Context, db *gorm.DB, entry Entry) {
	record := models.ActivityRecord{
		UserID:      entry.UserID,
		Role:        entry.Role,
		Kind:        entry.Kind,
		Action:      entry.Action,
		Name:        entry.Name,
		Description: entry.Description,
	}
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		applog.Error(ctx, "failed to record activity", "error", err, "kind", entry.Kind, "action", entry.Action, "name", entry.Name)
	}
}

// Filter narrows an activity listing. Zero values mean no constraint;
// From and To bound the record timestamp inclusively by day.
type Filter struct {
	Kind   string
	Action string
	From   time.Time
	To     time.Time
}

// List returns activity records newest first, honoring the filter.
func List(ctx context.Context, db *gorm.DB, filter Filter) ([]models.ActivityRecord, error) {
	query := db.WithContext(ctx).Model(&models.ActivityRecord{}).Order("created_at desc, id desc")

	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if !filter.From.IsZero() {
		query = query.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("created_at < ?", filter.To.AddDate(0, 0, 1))
	}

	var records []models.ActivityRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
