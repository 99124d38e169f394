package borrowers

import "time"

// DB行に対応（スキャン用）
type borrowerRow struct {
	BorrowerID   int64
	BorrowerULID string
	Name         string
	Contact      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r borrowerRow) toDTO() BorrowerResponse {
	return BorrowerResponse{
		BorrowerID:   r.BorrowerID,
		BorrowerULID: r.BorrowerULID,
		Name:         r.Name,
		Contact:      r.Contact,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}
