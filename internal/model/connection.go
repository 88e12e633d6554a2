package model

import "gorm.io/gorm"

type Protocol string

const (
	ProtocolFTP  Protocol = "ftp"
	ProtocolSFTP Protocol = "sftp"
)

// FTPConnection holds the credentials for one remote endpoint. Schedules
// and histories reference it by ID.
type FTPConnection struct {
	gorm.Model
	Name     string   `gorm:"not null;uniqueIndex" json:"name"`
	Host     string   `gorm:"not null" json:"host"`
	Port     int      `gorm:"not null" json:"port"`
	Username string   `gorm:"not null" json:"username"`
	Password string   `gorm:"not null" json:"-"`
	Protocol Protocol `gorm:"not null;default:'ftp'" json:"protocol"`
	Secure   bool     `json:"secure"`
}
