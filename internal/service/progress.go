package service

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/flexfitness/flex-cli/internal/model"
)

type ProgressInput struct {
	ClientID   int64
	Weight     float64
	Unit       string
	RecordedOn string
	Notes      string
}

func AddProgress(db *sql.DB, in ProgressInput) (int64, error) {
	weightKg, err := convertWeightToKg(in.Weight, in.Unit)
	if err != nil {
		return 0, err
	}
	if _, err := GetClient(db, in.ClientID); err != nil {
		return 0, err
	}
	date, err := normalizeDate(in.RecordedOn)
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`
INSERT INTO progress_entries(client_id, recorded_on, weight_kg, notes)
VALUES(?, ?, ?, ?)
`, in.ClientID, date, weightKg, strings.TrimSpace(in.Notes))
	if err != nil {
		return 0, fmt.Errorf("add progress entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve progress entry id: %w", err)
	}
	return id, nil
}

// ListProgress returns a client's entries, newest first. A non-empty trainer
// must be the client's trainer.
func ListProgress(db *sql.DB, clientID int64, trainer string, limit int) ([]model.ProgressEntry, error) {
	if _, err := ClientForTrainer(db, clientID, trainer); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
SELECT id, client_id, recorded_on, weight_kg, IFNULL(notes, '')
FROM progress_entries
WHERE client_id = ?
ORDER BY recorded_on DESC, id DESC
LIMIT ?
`, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list progress for client %d: %w", clientID, err)
	}
	defer rows.Close()
	items := make([]model.ProgressEntry, 0)
	for rows.Next() {
		var p model.ProgressEntry
		if err := rows.Scan(&p.ID, &p.ClientID, &p.RecordedOn, &p.WeightKg, &p.Notes); err != nil {
			return nil, fmt.Errorf("scan progress entry: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress entries: %w", err)
	}
	return items, nil
}

// DeleteProgress removes one entry, scoped to its client and, when trainer is
// set, to that trainer: an id outside the scope reports not found.
func DeleteProgress(db *sql.DB, clientID int64, trainer string, progressID int64) error {
	if progressID <= 0 {
		return invalidf("progress id must be > 0")
	}
	if _, err := ClientForTrainer(db, clientID, trainer); err != nil {
		return err
	}
	res, err := db.Exec(`DELETE FROM progress_entries WHERE id = ? AND client_id = ?`, progressID, clientID)
	if err != nil {
		return fmt.Errorf("delete progress entry %d: %w", progressID, err)
	}
	return affectedOrNotFound(res, "progress entry", progressID)
}

func convertWeightToKg(value float64, unit string) (float64, error) {
	if value <= 0 {
		return 0, invalidf("weight must be > 0")
	}
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		u = "kg"
	}
	switch u {
	case "kg":
		return value, nil
	case "lb", "lbs":
		return value * 0.45359237, nil
	default:
		return 0, invalidf("invalid weight unit %q (use kg or lb)", unit)
	}
}
