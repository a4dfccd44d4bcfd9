package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Listing is the car-for-sale record. The four status flags are only ever
// mutated one at a time by the status service; Version backs the optimistic
// lock on every status update.
type Listing struct {
	ID            uint64          `gorm:"primaryKey"`
	SellerID      uint64          `gorm:"not null;index"`
	Seller        *User           `gorm:"foreignKey:SellerID"`
	GovernorateID uint64          `gorm:"not null;index"`
	Governorate   *Governorate    `gorm:"foreignKey:GovernorateID"`
	Make          string          `gorm:"size:64;not null"`
	Model         string          `gorm:"size:64;not null"`
	Year          int             `gorm:"not null"`
	Mileage       int             `gorm:"not null;default:0"`
	Price         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Description   string          `gorm:"type:text"`
	Photos        datatypes.JSON  `gorm:"type:jsonb"`

	Approved   bool `gorm:"not null;default:false"`
	Sold       bool `gorm:"not null;default:false"`
	Archived   bool `gorm:"not null;default:false"`
	UserActive bool `gorm:"not null;default:true"`

	Version   uint64    `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Listing) TableName() string { return "listing" }
