package models

import "time"

type JsonModel struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorOut is the body of every non-2xx response.
type ErrorOut struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
