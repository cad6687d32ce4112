package pksqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/launchdarkly/ccache"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"

	"github.com/pushkit/go-client-sdk/pkautomation"
)

// DefaultScheduleCacheSize is the default number of schedules kept in the read cache.
const DefaultScheduleCacheSize = 100

const scheduleCacheTTL = 10 * time.Minute

// Tables that hold schedules. In-app message schedules and action schedules have separate tables,
// so that each engine only restores its own.
const (
	SchedulesTable       = "schedules"
	ActionSchedulesTable = "action_schedules"
)

type scheduleQueries struct {
	put, get, getGroup, getAll, delete, count string
}

func newScheduleQueries(table string) scheduleQueries {
	return scheduleQueries{
		put: fmt.Sprintf(`INSERT INTO %s (id, grp, created_at, data) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET grp = excluded.grp, created_at = excluded.created_at, data = excluded.data`, table),
		get:      fmt.Sprintf(`SELECT data FROM %s WHERE id = ?`, table),
		getGroup: fmt.Sprintf(`SELECT data FROM %s WHERE grp = ? ORDER BY created_at, id`, table),
		getAll:   fmt.Sprintf(`SELECT data FROM %s ORDER BY created_at, id`, table),
		delete:   fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table),
		count:    fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table),
	}
}

var scheduleTableQueries = map[string]scheduleQueries{
	SchedulesTable:       newScheduleQueries(SchedulesTable),
	ActionSchedulesTable: newScheduleQueries(ActionSchedulesTable),
}

type scheduleStore struct {
	database  *Database
	queries   scheduleQueries
	owned     bool
	cache     *ccache.Cache
	cacheLock sync.RWMutex
}

// NewScheduleStore returns a ScheduleStore using the database's schedules table. Schedules read by
// ID are cached; cacheSize 0 disables the cache. Closing the store does not close the database.
func (d *Database) NewScheduleStore(cacheSize int) pkautomation.ScheduleStore {
	return d.newScheduleStore(SchedulesTable, cacheSize)
}

// NewActionScheduleStore is like NewScheduleStore but uses the action_schedules table.
func (d *Database) NewActionScheduleStore(cacheSize int) pkautomation.ScheduleStore {
	return d.newScheduleStore(ActionSchedulesTable, cacheSize)
}

func (d *Database) newScheduleStore(table string, cacheSize int) *scheduleStore {
	s := &scheduleStore{database: d, queries: scheduleTableQueries[table]}
	if cacheSize > 0 {
		s.cache = ccache.New(ccache.Configure().MaxSize(int64(cacheSize)))
	}
	return s
}

func (s *scheduleStore) Put(schedules ...pkautomation.Schedule) error {
	err := s.database.inTx(func(tx *sql.Tx) error {
		for _, sched := range schedules {
			data := pkautomation.ScheduleAsValue(sched).JSONString()
			if _, err := tx.Exec(s.queries.put, sched.ID, sched.Info.Group, sched.CreatedAt.UnixMilli(), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, sched := range schedules {
			s.safeCacheDelete(sched.ID)
		}
		return fmt.Errorf("pksqlite: storing schedules: %w", err)
	}
	for _, sched := range schedules {
		s.safeCacheSet(sched.ID, sched.Clone())
	}
	return nil
}

func (s *scheduleStore) Get(id string) (pkautomation.Schedule, bool, error) {
	if item := s.safeCacheGet(id); item != nil && !item.Expired() {
		if sched, ok := item.Value().(pkautomation.Schedule); ok {
			return sched.Clone(), true, nil
		}
	}
	var data string
	err := s.database.db.QueryRow(s.queries.get, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return pkautomation.Schedule{}, false, nil
	}
	if err != nil {
		return pkautomation.Schedule{}, false, fmt.Errorf("pksqlite: reading schedule %s: %w", id, err)
	}
	sched := pkautomation.ScheduleFromValue(ldvalue.Parse([]byte(data)))
	s.safeCacheSet(id, sched.Clone())
	return sched, true, nil
}

func (s *scheduleStore) GetByGroup(group string) ([]pkautomation.Schedule, error) {
	return s.query(s.queries.getGroup, group)
}

func (s *scheduleStore) GetAll() ([]pkautomation.Schedule, error) {
	return s.query(s.queries.getAll)
}

func (s *scheduleStore) query(q string, args ...any) ([]pkautomation.Schedule, error) {
	rows, err := s.database.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("pksqlite: reading schedules: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	var ret []pkautomation.Schedule
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("pksqlite: reading schedules: %w", err)
		}
		ret = append(ret, pkautomation.ScheduleFromValue(ldvalue.Parse([]byte(data))))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pksqlite: reading schedules: %w", err)
	}
	return ret, nil
}

func (s *scheduleStore) Delete(ids ...string) error {
	for _, id := range ids {
		s.safeCacheDelete(id)
	}
	err := s.database.inTx(func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.Exec(s.queries.delete, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pksqlite: deleting schedules: %w", err)
	}
	return nil
}

func (s *scheduleStore) Count() (int, error) {
	var count int
	if err := s.database.db.QueryRow(s.queries.count).Scan(&count); err != nil {
		return 0, fmt.Errorf("pksqlite: counting schedules: %w", err)
	}
	return count, nil
}

func (s *scheduleStore) Close() error {
	s.cacheLock.Lock()
	if s.cache != nil {
		s.cache.Stop()
		s.cache = nil
	}
	s.cacheLock.Unlock()
	if s.owned {
		return s.database.Close()
	}
	return nil
}

// The cache helpers take the lock because a ccache.Cache must not be used after Stop.
func (s *scheduleStore) safeCacheGet(id string) *ccache.Item {
	s.cacheLock.RLock()
	defer s.cacheLock.RUnlock()
	if s.cache == nil {
		return nil
	}
	return s.cache.Get(id)
}

func (s *scheduleStore) safeCacheSet(id string, sched pkautomation.Schedule) {
	s.cacheLock.RLock()
	defer s.cacheLock.RUnlock()
	if s.cache != nil {
		s.cache.Set(id, sched, scheduleCacheTTL)
	}
}

func (s *scheduleStore) safeCacheDelete(id string) {
	s.cacheLock.RLock()
	defer s.cacheLock.RUnlock()
	if s.cache != nil {
		s.cache.Delete(id)
	}
}
