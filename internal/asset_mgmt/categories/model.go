package categories

type CreateCategoryRequest struct {
	CategoryName string `json:"name" binding:"required"`
	CategoryCode string `json:"code" binding:"required"`
}

type UpdateCategoryRequest struct {
	CategoryName string `json:"name" binding:"required"`
	CategoryCode string `json:"code" binding:"required"`
	IsDisabled   bool   `json:"is_disabled"`
}

type AssetCategory struct {
	CategoryID   uint   `json:"id"`
	CategoryName string `json:"name"`
	CategoryCode string `json:"code"`
	IsDisabled   bool   `json:"is_disabled"`
}
