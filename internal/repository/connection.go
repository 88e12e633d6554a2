package repository

import (
	"errors"
	"fmt"

	"terrasync/internal/db"
	"terrasync/internal/model"

	"gorm.io/gorm"
)

type ConnectionRepository struct{}

func NewConnectionRepository() *ConnectionRepository {
	return &ConnectionRepository{}
}

func (r *ConnectionRepository) Create(conn *model.FTPConnection) error {
	return db.DB.Create(conn).Error
}

func (r *ConnectionRepository) GetAll() ([]model.FTPConnection, error) {
	var conns []model.FTPConnection
	return conns, db.DB.Find(&conns).Error
}

func (r *ConnectionRepository) GetByID(id uint) (model.FTPConnection, error) {
	var conn model.FTPConnection
	err := db.DB.First(&conn, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conn, fmt.Errorf("connection %d: %w", id, ErrNotFound)
	}

	return conn, err
}

func (r *ConnectionRepository) Delete(id uint) error {
	result := db.DB.Delete(&model.FTPConnection{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("connection %d: %w", id, ErrNotFound)
	}

	return nil
}
