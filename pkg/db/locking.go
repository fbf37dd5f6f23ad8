package db

import "gorm.io/gorm"

// ForUpdate returns the row-locking suffix for the active dialect. SQLite
// has no SELECT ... FOR UPDATE; its writer lock already serializes mutations,
// so the suffix is empty there.
func ForUpdate(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}
