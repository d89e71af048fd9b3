package service

import (
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/flexfitness/flex-cli/internal/model"
)

const clientColumns = `id, name, email, gender, trainer, created_at`

type ClientInput struct {
	Name    string
	Email   string
	Gender  string
	Trainer string
}

// ClientUpdate holds profile changes; nil fields are left as they are.
type ClientUpdate struct {
	Name   *string
	Email  *string
	Gender *string
}

func AddClient(db *sql.DB, in ClientInput) (int64, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return 0, invalidf("client name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return 0, err
	}
	res, err := db.Exec(`INSERT INTO clients(name, email, gender, trainer) VALUES(?, ?, ?, ?)`,
		in.Name, email, normalizeName(in.Gender), normalizeName(in.Trainer))
	if err != nil {
		return 0, fmt.Errorf("add client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolve client id: %w", err)
	}
	return id, nil
}

func GetClient(db *sql.DB, id int64) (model.Client, error) {
	if id <= 0 {
		return model.Client{}, invalidf("client id must be > 0")
	}
	c, err := scanClient(db.QueryRow(`SELECT `+clientColumns+` FROM clients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{}, fmt.Errorf("client %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Client{}, fmt.Errorf("get client %d: %w", id, err)
	}
	return c, nil
}

// ClientForTrainer is GetClient restricted to one trainer's clients. A client
// assigned to someone else reports not found. An empty trainer skips the
// check.
func ClientForTrainer(db *sql.DB, id int64, trainer string) (model.Client, error) {
	c, err := GetClient(db, id)
	if err != nil {
		return model.Client{}, err
	}
	if t := normalizeName(trainer); t != "" && c.Trainer != t {
		return model.Client{}, fmt.Errorf("client %d for trainer %q: %w", id, t, ErrNotFound)
	}
	return c, nil
}

// UpdateClient edits a client's profile. A non-empty trainer must match the
// client's trainer.
func UpdateClient(db *sql.DB, id int64, trainer string, in ClientUpdate) (model.Client, error) {
	if in.Name == nil && in.Email == nil && in.Gender == nil {
		return model.Client{}, invalidf("nothing to update")
	}
	c, err := ClientForTrainer(db, id, trainer)
	if err != nil {
		return model.Client{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return model.Client{}, invalidf("client name is required")
		}
		c.Name = name
	}
	if in.Email != nil {
		if c.Email, err = normalizeEmail(*in.Email); err != nil {
			return model.Client{}, err
		}
	}
	if in.Gender != nil {
		c.Gender = normalizeName(*in.Gender)
	}
	if _, err := db.Exec(`UPDATE clients SET name = ?, email = ?, gender = ? WHERE id = ?`, c.Name, c.Email, c.Gender, id); err != nil {
		return model.Client{}, fmt.Errorf("update client %d: %w", id, err)
	}
	return c, nil
}

// ListClients returns all clients, or only the given trainer's when trainer
// is non-empty.
func ListClients(db *sql.DB, trainer string) ([]model.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients`
	args := make([]any, 0, 1)
	if t := normalizeName(trainer); t != "" {
		query += ` WHERE trainer = ?`
		args = append(args, t)
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()
	items := make([]model.Client, 0)
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return items, nil
}

func DeleteClient(db *sql.DB, id int64) error {
	if id <= 0 {
		return invalidf("client id must be > 0")
	}
	res, err := db.Exec(`DELETE FROM clients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete client %d: %w", id, err)
	}
	return affectedOrNotFound(res, "client", id)
}

func scanClient(row rowScanner) (model.Client, error) {
	var c model.Client
	var createdRaw string
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Gender, &c.Trainer, &createdRaw); err != nil {
		return model.Client{}, err
	}
	c.CreatedAt = parseTimestamp(createdRaw)
	return c, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", invalidf("invalid client email %q", email)
	}
	return email, nil
}
