package model

import "time"

type Favorite struct {
	ID        uint64   `gorm:"primaryKey"`
	UserID    uint64   `gorm:"not null;uniqueIndex:idx_favorite_user_listing"`
	ListingID uint64   `gorm:"not null;uniqueIndex:idx_favorite_user_listing"`
	Listing   *Listing `gorm:"foreignKey:ListingID"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Favorite) TableName() string { return "favorite" }
