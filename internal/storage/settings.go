package storage

import (
	"database/sql"
	"time"
)

// SetSetting upserts a key/value pair in the local settings table, used to
// persist small operational values outside the YAML config — most notably
// encrypted connector RPC credentials (see internal/config/credentials.go).
func (s *Storage) SetSetting(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	return err
}

// GetSetting returns the stored value for key, or ok=false if unset.
func (s *Storage) GetSetting(key string) (value string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
