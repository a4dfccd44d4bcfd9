package http

import (
	"encoding/json"
	"time"

	"github.com/hazemadel/carmarket-service/internal/model"
)

// ListingResponse is the public shape of a listing.
type ListingResponse struct {
	ID          uint64    `json:"id"`
	Seller      string    `json:"seller"`
	Governorate string    `json:"governorate,omitempty"`
	Make        string    `json:"make"`
	Model       string    `json:"model"`
	Year        int       `json:"year"`
	Mileage     int       `json:"mileage"`
	Price       string    `json:"price"`
	Description string    `json:"description,omitempty"`
	Photos      []string  `json:"photos"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AdminListingResponse adds the moderation fields the public shape hides.
type AdminListingResponse struct {
	ListingResponse
	SellerEmail string `json:"seller_email,omitempty"`
	Approved    bool   `json:"approved"`
	Sold        bool   `json:"sold"`
	Archived    bool   `json:"archived"`
	UserActive  bool   `json:"user_active"`
	Version     uint64 `json:"version"`
}

// GovernorateResponse is the public shape of a governorate.
type GovernorateResponse struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// FavoriteResponse wraps a saved listing.
type FavoriteResponse struct {
	ListingID uint64           `json:"listing_id"`
	SavedAt   time.Time        `json:"saved_at"`
	Listing   *ListingResponse `json:"listing,omitempty"`
}

func toListingResponse(l *model.Listing) ListingResponse {
	resp := ListingResponse{
		ID:          l.ID,
		Make:        l.Make,
		Model:       l.Model,
		Year:        l.Year,
		Mileage:     l.Mileage,
		Price:       l.Price.StringFixed(2),
		Description: l.Description,
		Photos:      decodePhotoKeys(l),
		Status:      statusLabel(l),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.Seller != nil {
		resp.Seller = l.Seller.Username
	}
	if l.Governorate != nil {
		resp.Governorate = l.Governorate.Name
	}
	return resp
}

func toAdminListingResponse(l *model.Listing) AdminListingResponse {
	resp := AdminListingResponse{
		ListingResponse: toListingResponse(l),
		Approved:        l.Approved,
		Sold:            l.Sold,
		Archived:        l.Archived,
		UserActive:      l.UserActive,
		Version:         l.Version,
	}
	if l.Seller != nil {
		resp.SellerEmail = l.Seller.Email
	}
	return resp
}

func toGovernorateResponse(g *model.Governorate) GovernorateResponse {
	return GovernorateResponse{ID: g.ID, Name: g.Name, Slug: g.Slug}
}

func toFavoriteResponse(f *model.Favorite) FavoriteResponse {
	resp := FavoriteResponse{ListingID: f.ListingID, SavedAt: f.CreatedAt}
	if f.Listing != nil {
		lr := toListingResponse(f.Listing)
		resp.Listing = &lr
	}
	return resp
}

// statusLabel folds the four flags into the single label clients see.
func statusLabel(l *model.Listing) string {
	switch {
	case l.Archived:
		return "archived"
	case l.Sold:
		return "sold"
	case !l.Approved:
		return "pending"
	case !l.UserActive:
		return "paused"
	default:
		return "active"
	}
}

func decodePhotoKeys(l *model.Listing) []string {
	if len(l.Photos) == 0 {
		return []string{}
	}
	var keys []string
	if err := json.Unmarshal(l.Photos, &keys); err != nil {
		return []string{}
	}
	return keys
}
