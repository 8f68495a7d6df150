package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringList is stored as text[] on postgres and as the same array literal
// in a text column elsewhere (sqlite in tests).
type StringList []string

func (s *StringList) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*s = StringList(arr)
	return nil
}

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return pq.StringArray{}.Value()
	}
	return pq.StringArray(s).Value()
}

func (StringList) GormDataType() string {
	return "text[]"
}

func (StringList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

func (s StringList) Contains(value string) bool {
	for _, v := range s {
		if v == value {
			return true
		}
	}
	return false
}
