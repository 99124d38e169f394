package assets

import (
	"time"

	"ATLAS-backend/internal/asset_mgmt/lending"
)

// ===== Requests =====

type CreateAssetRequest struct {
	Name        string  `json:"name" binding:"required"`
	CategoryID  uint    `json:"category_id" binding:"required"`
	Description *string `json:"description,omitempty"`
}

// status はここでは更新できない。Lent の出入りは貸出コアのみ、
// Maintenance の出入りは maintenance 経由のみ。
type UpdateAssetRequest struct {
	Name        *string `json:"name,omitempty"`
	CategoryID  *uint   `json:"category_id,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ===== Responses =====

type AssetResponse struct {
	AssetID     int64          `json:"asset_id"`
	AssetULID   string         `json:"asset_ulid"`
	Name        string         `json:"name"`
	CategoryID  uint           `json:"category_id"`
	Description *string        `json:"description,omitempty"`
	Status      lending.Status `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ===== Search =====

type AssetSearchQuery struct {
	Name       *string
	CategoryID *uint
	Status     *lending.Status
}

type Page struct {
	Limit  int
	Offset int
	Order  string
}
