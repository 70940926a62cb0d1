// Package db keeps the agent's local state in SQLite.
package db

import (
	"errors"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct{ db *gorm.DB }

func Open(path string) (*Store, error) {
	if path != ":memory:" && path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := gdb.AutoMigrate(&Credentials{}, &AppliedPolicy{}); err != nil {
		return nil, err
	}
	return &Store{db: gdb}, nil
}

// Credentials returns nil when the device never enrolled.
func (s *Store) Credentials() (*Credentials, error) {
	var c Credentials
	err := s.db.Order("id desc").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) SaveCredentials(c *Credentials) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id <> ?", c.ID).Delete(&Credentials{}).Error; err != nil {
			return err
		}
		return tx.Save(c).Error
	})
}

func (s *Store) SetFleetTopic(topic string) error {
	return s.db.Model(&Credentials{}).Where("1 = 1").Update("fleet_topic", topic).Error
}

func (s *Store) SavePolicy(p *AppliedPolicy) error {
	return s.db.Save(p).Error
}

func (s *Store) RemovePolicy(taskID uint) error {
	return s.db.Delete(&AppliedPolicy{}, taskID).Error
}

func (s *Store) Policies() ([]AppliedPolicy, error) {
	var out []AppliedPolicy
	return out, s.db.Order("task_id").Find(&out).Error
}

func (s *Store) ClearPolicies() error {
	return s.db.Where("1 = 1").Delete(&AppliedPolicy{}).Error
}

// Reset forgets the enrollment, as after an unenrollment.
func (s *Store) Reset() error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&AppliedPolicy{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&Credentials{}).Error
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
