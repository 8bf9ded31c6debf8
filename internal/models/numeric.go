package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Numeric is an exact decimal column. SQLite has no exact decimal type and
// its NUMERIC affinity rounds through REAL, so there the value is kept as text.
type Numeric struct {
	decimal.Decimal
}

func NewNumeric(d decimal.Decimal) Numeric {
	return Numeric{Decimal: d}
}

// GormDBDataType picks the column type per dialect.
func (Numeric) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric"
}
