package lending

import "time"

// 貸出登録リクエスト
type CreateLendRequest struct {
	AssetID    int64   `json:"asset_id" binding:"required"`
	BorrowerID int64   `json:"borrower_id" binding:"required"`
	Note       *string `json:"note,omitempty"`
}

// 返却登録リクエスト（資産起点。開いている貸出はコア側で一意に解決する）
type CreateReturnRequest struct {
	AssetID int64   `json:"asset_id" binding:"required"`
	Note    *string `json:"note,omitempty"`
}

type AssetDTO struct {
	AssetID   int64  `json:"asset_id"`
	AssetULID string `json:"asset_ulid"`
	Name      string `json:"name"`
	Status    Status `json:"status"`
}

// 貸出・返却・履歴で共通のレコード表現。
// 貸出／返却の応答では Asset に操作後の資産状態が入る。
type LendResponse struct {
	LendID          int64      `json:"lend_id"`
	LendULID        string     `json:"lend_ulid"`
	AssetID         int64      `json:"asset_id"`
	BorrowerID      int64      `json:"borrower_id"`
	BorrowerName    string     `json:"borrower_name"`
	BorrowerContact string     `json:"borrower_contact"`
	LentAt          time.Time  `json:"lent_at"`
	ReturnedAt      *time.Time `json:"returned_at,omitempty"`
	Note            *string    `json:"note,omitempty"`
	Asset           *AssetDTO  `json:"asset,omitempty"`
}

func buildLendResponse(rec *LendingRecord, asset *AssetState) LendResponse {
	resp := LendResponse{
		LendID:          rec.LendID,
		LendULID:        rec.LendULID,
		AssetID:         rec.AssetID,
		BorrowerID:      rec.BorrowerID,
		BorrowerName:    rec.BorrowerName,
		BorrowerContact: rec.BorrowerContact,
		LentAt:          rec.LentAt,
	}
	if rec.ReturnedAt.Valid {
		val := rec.ReturnedAt.Time
		resp.ReturnedAt = &val
	}
	if rec.Note.Valid {
		val := rec.Note.String
		resp.Note = &val
	}
	if asset != nil {
		resp.Asset = &AssetDTO{
			AssetID:   asset.AssetID,
			AssetULID: asset.AssetULID,
			Name:      asset.Name,
			Status:    asset.Status,
		}
	}
	return resp
}
