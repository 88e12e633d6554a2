package model

import "gorm.io/gorm"

// Activity is one row of the audit feed shown in the dashboard.
type Activity struct {
	gorm.Model
	Action    string `gorm:"not null" json:"action"`
	Icon      string `json:"icon"`
	IconColor string `json:"iconColor"`
}
