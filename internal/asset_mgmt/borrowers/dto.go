package borrowers

import "time"

type CreateBorrowerRequest struct {
	Name    string `json:"name" binding:"required"`
	Contact string `json:"contact" binding:"required"`
}

type UpdateBorrowerRequest struct {
	Name    *string `json:"name,omitempty"`
	Contact *string `json:"contact,omitempty"`
}

type BorrowerResponse struct {
	BorrowerID   int64     `json:"borrower_id"`
	BorrowerULID string    `json:"borrower_ulid"`
	Name         string    `json:"name"`
	Contact      string    `json:"contact"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ListQuery struct {
	Name   *string
	Limit  int
	Offset int
	Order  string
}
