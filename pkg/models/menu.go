package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategoryStarters   Category = "starters"
	CategoryMainCourse Category = "main_course"
	CategoryDesserts   Category = "desserts"
	CategoryBeverages  Category = "beverages"
	CategorySpecials   Category = "specials"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryStarters, CategoryMainCourse, CategoryDesserts, CategoryBeverages, CategorySpecials:
		return true
	}
	return false
}

// MenuItem is a catalog entry. Price is authoritative for order pricing.
type MenuItem struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Image       string             `bson:"image" json:"image"`
	Category    Category           `bson:"category" json:"category"`
	Available   bool               `bson:"available" json:"available"`
	IsVeg       bool               `bson:"is_veg" json:"isVeg"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt"`
}

// IsValidID reports whether s is in the catalog's identifier format.
func IsValidID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
