package types

import "time"

// BaseModel is embedded by all persisted domain models.
type BaseModel struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func GetDefaultBaseModel() BaseModel {
	now := time.Now().UTC()
	return BaseModel{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps the updated timestamp before a write.
func (m *BaseModel) Touch() {
	m.UpdatedAt = time.Now().UTC()
}
