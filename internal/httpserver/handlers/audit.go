package handlers

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"saascore/internal/models"
)

// audit appends a best-effort audit row; failures never block the request.
func audit(db *gorm.DB, userID *string, action string, meta map[string]any) {
	md, err := json.Marshal(meta)
	if err != nil {
		md = []byte("{}")
	}
	_ = db.Create(&models.AuditLog{
		UserID:    userID,
		Action:    action,
		Metadata:  models.JSONB(md),
		CreatedAt: time.Now(),
	}).Error
}
