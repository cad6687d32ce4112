package pksqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pushkit/go-client-sdk/pkevents"
)

const (
	queryAppendEvent  = `INSERT INTO events (id, type, priority, time, session_id, body, size) VALUES (?, ?, ?, ?, ?, ?, ?)`
	querySelectEvents = `SELECT id, type, priority, time, session_id, body, size FROM events ORDER BY seq`
	queryEventSizes   = `SELECT id, priority, size FROM events ORDER BY seq`
	queryDeleteEvent  = `DELETE FROM events WHERE id = ?`
	queryDeleteEvents = `DELETE FROM events`
	queryEventsSize   = `SELECT COALESCE(SUM(size), 0) FROM events`
	queryEventsCount  = `SELECT COUNT(*) FROM events`
)

type eventStore struct {
	database *Database
	owned    bool
}

// NewEventStore returns an EventStore using the database's events table. Closing the store does
// not close the database.
func (d *Database) NewEventStore() pkevents.EventStore {
	return &eventStore{database: d}
}

func (s *eventStore) Append(e pkevents.StoredEvent) error {
	_, err := s.database.db.Exec(queryAppendEvent,
		e.ID, e.Type, int(e.Priority), e.Time.UnixMilli(), e.SessionID, e.Body, e.Size)
	if err != nil {
		return fmt.Errorf("pksqlite: storing event %s: %w", e.ID, err)
	}
	return nil
}

func (s *eventStore) Prune(maxBytes int) (int, error) {
	removed := 0
	err := s.database.inTx(func(tx *sql.Tx) error {
		rows, err := tx.Query(queryEventSizes)
		if err != nil {
			return err
		}
		var events []pkevents.StoredEvent
		total := 0
		for rows.Next() {
			var e pkevents.StoredEvent
			var priority int
			if err := rows.Scan(&e.ID, &priority, &e.Size); err != nil {
				_ = rows.Close()
				return err
			}
			e.Priority = pkevents.Priority(priority)
			total += e.Size
			events = append(events, e)
		}
		_ = rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, i := range pkevents.PruneOrder(events) {
			if total <= maxBytes {
				break
			}
			if _, err := tx.Exec(queryDeleteEvent, events[i].ID); err != nil {
				return err
			}
			total -= events[i].Size
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pksqlite: pruning events: %w", err)
	}
	return removed, nil
}

func (s *eventStore) Snapshot(maxBytes int) ([]pkevents.StoredEvent, error) {
	rows, err := s.database.db.Query(querySelectEvents)
	if err != nil {
		return nil, fmt.Errorf("pksqlite: reading events: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	var events []pkevents.StoredEvent
	for rows.Next() {
		var e pkevents.StoredEvent
		var priority int
		var ms int64
		if err := rows.Scan(&e.ID, &e.Type, &priority, &ms, &e.SessionID, &e.Body, &e.Size); err != nil {
			return nil, fmt.Errorf("pksqlite: reading events: %w", err)
		}
		e.Priority = pkevents.Priority(priority)
		e.Time = time.UnixMilli(ms)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pksqlite: reading events: %w", err)
	}
	return pkevents.SelectBatch(events, maxBytes), nil
}

func (s *eventStore) Delete(ids []string) error {
	err := s.database.inTx(func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec(queryDeleteEvent, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pksqlite: deleting events: %w", err)
	}
	return nil
}

func (s *eventStore) DeleteAll() error {
	if _, err := s.database.db.Exec(queryDeleteEvents); err != nil {
		return fmt.Errorf("pksqlite: deleting events: %w", err)
	}
	return nil
}

func (s *eventStore) Size() (int, error) {
	var size int
	if err := s.database.db.QueryRow(queryEventsSize).Scan(&size); err != nil {
		return 0, fmt.Errorf("pksqlite: reading event store size: %w", err)
	}
	return size, nil
}

func (s *eventStore) Count() (int, error) {
	var count int
	if err := s.database.db.QueryRow(queryEventsCount).Scan(&count); err != nil {
		return 0, fmt.Errorf("pksqlite: counting events: %w", err)
	}
	return count, nil
}

func (s *eventStore) Close() error {
	if s.owned {
		return s.database.Close()
	}
	return nil
}
