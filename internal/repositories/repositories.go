package repositories

import (
	"database/sql"
	"fmt"
)

// NextSequence increments and returns the sequence counter for table in a single statement.
//
// Sequence numbers order history rows and are shown as #n in listings.
func NextSequence(db *sql.DB, table string) (int, error) {
	var sequence int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
