package model

import "time"

type Governorate struct {
	ID        uint64    `gorm:"primaryKey"`
	Name      string    `gorm:"size:64;uniqueIndex;not null"`
	Slug      string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Governorate) TableName() string { return "governorate" }
