package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cdrgen/descriptor"
)

// Violation is a published struct member whose position changed.
type Violation struct {
	Type    string
	Member  string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s.%s: %s", v.Type, v.Member, v.Message)
}

// Ordinal is the published position of a struct member.
type Ordinal struct {
	Member  string
	Ordinal int
	ID      uint32
	RunID   string
}

// Version is one published descriptor of a type.
type Version struct {
	TypeName   string
	TypeID     string
	RunID      string
	Seq        int64
	Descriptor []byte // canonical JSON
}

// Record stores the descriptors of a successful run. Descriptors already
// recorded and members already published are left untouched, so recording
// the same run twice is a no-op.
func (s *Store) Record(ctx context.Context, runID string, ds []*descriptor.Descriptor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	err = tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE run_id = ?`, runID).Scan(&seq)
	switch {
	case err == sql.ErrNoRows:
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
			return fmt.Errorf("record run: next seq: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO runs (run_id, seq) VALUES (?, ?)`, runID, seq); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	case err != nil:
		return fmt.Errorf("record run: %w", err)
	}

	for _, d := range ds {
		canonical, err := d.MarshalCanonical()
		if err != nil {
			return fmt.Errorf("record %s: %w", d.Name(), err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO type_versions (type_name, type_id, run_id, seq, descriptor)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING
		`, d.Name(), d.TypeID(), runID, seq, string(canonical))
		if err != nil {
			return fmt.Errorf("record %s: %w", d.Name(), err)
		}

		for i, m := range d.Root().Members {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO member_ordinals (type_name, member, ordinal, member_id, run_id)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT DO NOTHING
			`, d.Name(), m.Name, i, m.ID, runID)
			if err != nil {
				return fmt.Errorf("record %s.%s: %w", d.Name(), m.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run: commit: %w", err)
	}
	return nil
}

// CheckOrdinals compares the struct members of ds against the ledger. A
// published member must keep its ordinal and member id, and its ordinal
// may not be taken over by another member. Appending members is allowed.
func (s *Store) CheckOrdinals(ctx context.Context, ds []*descriptor.Descriptor) ([]Violation, error) {
	var violations []Violation
	for _, d := range ds {
		root := d.Root()
		if root.Kind != descriptor.KindStruct {
			continue
		}
		published, err := s.Ordinals(ctx, d.Name())
		if err != nil {
			return nil, err
		}

		byName := make(map[string]int, len(root.Members))
		for i, m := range root.Members {
			byName[m.Name] = i
		}
		for _, p := range published {
			i, ok := byName[p.Member]
			if !ok {
				if p.Ordinal < len(root.Members) {
					violations = append(violations, Violation{
						Type:    d.Name(),
						Member:  p.Member,
						Message: fmt.Sprintf("removed; ordinal %d is now %s", p.Ordinal, root.Members[p.Ordinal].Name),
					})
				}
				continue
			}
			if i != p.Ordinal {
				violations = append(violations, Violation{
					Type:    d.Name(),
					Member:  p.Member,
					Message: fmt.Sprintf("ordinal %d, published as %d", i, p.Ordinal),
				})
			}
			if id := root.Members[i].ID; id != p.ID {
				violations = append(violations, Violation{
					Type:    d.Name(),
					Member:  p.Member,
					Message: fmt.Sprintf("member id %#x, published as %#x", id, p.ID),
				})
			}
		}
	}
	return violations, nil
}

// Ordinals returns the published members of a type in ordinal order.
func (s *Store) Ordinals(ctx context.Context, typeName string) ([]Ordinal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT member, ordinal, member_id, run_id
		FROM member_ordinals
		WHERE type_name = ?
		ORDER BY ordinal ASC, member COLLATE BINARY ASC
	`, typeName)
	if err != nil {
		return nil, fmt.Errorf("query ordinals: %w", err)
	}
	defer rows.Close()

	ordinals := []Ordinal{}
	for rows.Next() {
		var o Ordinal
		if err := rows.Scan(&o.Member, &o.Ordinal, &o.ID, &o.RunID); err != nil {
			return nil, fmt.Errorf("scan ordinal: %w", err)
		}
		ordinals = append(ordinals, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ordinals: %w", err)
	}
	return ordinals, nil
}

// History returns the published descriptors of a type, oldest first.
// Returns an empty slice (not nil) for unknown types.
func (s *Store) History(ctx context.Context, typeName string) ([]Version, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type_name, type_id, run_id, seq, descriptor
		FROM type_versions
		WHERE type_name = ?
		ORDER BY seq ASC, type_id COLLATE BINARY ASC
	`, typeName)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	versions := []Version{}
	for rows.Next() {
		var v Version
		var desc string
		if err := rows.Scan(&v.TypeName, &v.TypeID, &v.RunID, &v.Seq, &desc); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		v.Descriptor = []byte(desc)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return versions, nil
}

// Types returns the names of all recorded types, sorted.
func (s *Store) Types(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT type_name FROM type_versions
		ORDER BY type_name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query types: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan type: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate types: %w", err)
	}
	return names, nil
}
