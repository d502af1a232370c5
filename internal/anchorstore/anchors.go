package anchorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/anchorsync/internal/anchor"
	"github.com/roach88/anchorsync/internal/pose"
)

// ErrNotFound is returned when no entry exists under a name.
var ErrNotFound = errors.New("persisted anchor not found")

// ErrNoTracker is returned by RequestLoad when no Tracker is attached.
var ErrNoTracker = errors.New("no tracking subsystem attached")

// normalizeName NFC-normalises a persisted name.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// PersistedNames returns every persisted name in name order.
func (s *Store) PersistedNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM persisted_anchors
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("persisted names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("persisted names: scan: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("persisted names: %w", err)
	}
	return names, nil
}

// Entries returns every persisted anchor in save order.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, px, py, pz, qw, qx, qy, qz, saved_seq
		FROM persisted_anchors
		ORDER BY saved_seq ASC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("entries: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entries: %w", err)
	}
	return entries, nil
}

// Lookup returns the entry persisted under name, or ErrNotFound.
func (s *Store) Lookup(ctx context.Context, name string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, px, py, pz, qw, qx, qy, qz, saved_seq
		FROM persisted_anchors
		WHERE name = ?
	`, normalizeName(name))

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("lookup %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("lookup %q: %w", name, err)
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e   Entry
		pos pose.Vec3
		rot pose.Quat
	)
	if err := sc.Scan(&e.Name, &pos.X, &pos.Y, &pos.Z, &rot.W, &rot.X, &rot.Y, &rot.Z, &e.SavedSeq); err != nil {
		return Entry{}, err
	}
	e.Pose = pose.Pose{Position: pos, Orientation: rot}
	return e, nil
}

// Save writes p under name, replacing any previous entry with that name.
func (s *Store) Save(ctx context.Context, name string, p pose.Pose) error {
	q := p.Orientation.Normalize()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO persisted_anchors (name, px, py, pz, qw, qx, qy, qz, saved_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(saved_seq), 0) + 1 FROM persisted_anchors))
		ON CONFLICT(name) DO UPDATE SET
			px = excluded.px, py = excluded.py, pz = excluded.pz,
			qw = excluded.qw, qx = excluded.qx, qy = excluded.qy, qz = excluded.qz,
			saved_seq = excluded.saved_seq
	`,
		normalizeName(name),
		p.Position.X, p.Position.Y, p.Position.Z,
		q.W, q.X, q.Y, q.Z,
	)
	if err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	return nil
}

// RequestLoad hands the pose persisted under name to the tracker and returns
// the tracker's provisional identifier.
func (s *Store) RequestLoad(ctx context.Context, name string) (anchor.ID, error) {
	if s.tracker == nil {
		return "", fmt.Errorf("request load %q: %w", name, ErrNoTracker)
	}
	e, err := s.Lookup(ctx, name)
	if err != nil {
		return "", fmt.Errorf("request load: %w", err)
	}
	id := s.tracker.Load(e.Name, e.Pose)
	s.logger.Debug("load requested", "name", e.Name, "id", id)
	return id, nil
}

// Persist saves the live pose of id under name. It returns false when id is
// not tracked or the write fails.
func (s *Store) Persist(ctx context.Context, id anchor.ID, name string) bool {
	if s.tracker == nil {
		s.logger.Warn("persist without tracking subsystem", "id", id, "name", name)
		return false
	}
	p, ok := s.tracker.PoseOf(id)
	if !ok {
		s.logger.Info("persist of untracked anchor", "id", id, "name", name)
		return false
	}
	if err := s.Save(ctx, name, p); err != nil {
		s.logger.Error("persist failed", "id", id, "name", name, "error", err)
		return false
	}
	s.logger.Debug("anchor persisted", "id", id, "name", name)
	return true
}

// Clear erases every persisted entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM persisted_anchors`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}
