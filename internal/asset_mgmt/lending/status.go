package lending

import (
	"encoding/json"
	"fmt"
)

// Status は assets.status カラム（TINYINT）の閉じた値域。
// Lent への遷移・Lent からの遷移は貸出コアだけが書き込む。
type Status uint8

const (
	StatusAvailable   Status = 1
	StatusLent        Status = 2
	StatusMaintenance Status = 3
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusLent, StatusMaintenance:
		return true
	}
	return false
}

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusLent:
		return "lent"
	case StatusMaintenance:
		return "maintenance"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

func ParseStatus(v string) (Status, error) {
	switch v {
	case "available":
		return StatusAvailable, nil
	case "lent":
		return StatusLent, nil
	case "maintenance":
		return StatusMaintenance, nil
	}
	return 0, fmt.Errorf("unknown status %q", v)
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	parsed, err := ParseStatus(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ===== 操作ごとの遷移表 =====
// 貸出は Available からのみ、返却は Lent からのみ。

func (s Status) lendable() bool   { return s == StatusAvailable }
func (s Status) returnable() bool { return s == StatusLent }
