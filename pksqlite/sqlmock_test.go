package pksqlite

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushkit/go-client-sdk/pkautomation"
	"github.com/pushkit/go-client-sdk/pkevents"
)

var errFakeDatabase = errors.New("database is locked")

func withMockDatabase(t *testing.T, action func(d *Database, mock sqlmock.Sqlmock)) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	d, err := newDatabase(db, false)
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	action(d, mock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchemaCreationError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck
	mock.ExpectExec(regexp.QuoteMeta(schema[0])).WillReturnError(errFakeDatabase)

	_, err = newDatabase(db, true)
	assert.ErrorIs(t, err, errFakeDatabase)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyValueStoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		run    func(d *Database) error
	}{
		{
			name: "get",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryGetValue)).WithArgs("key").WillReturnError(errFakeDatabase)
			},
			run: func(d *Database) error {
				_, _, err := d.NewKeyValueStore().Get("key")
				return err
			},
		},
		{
			name: "set",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(querySetValue)).WithArgs("key", `"v"`).WillReturnError(errFakeDatabase)
			},
			run: func(d *Database) error {
				return d.NewKeyValueStore().Set("key", ldvalue.String("v"))
			},
		},
		{
			name: "remove",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryRemoveValue)).WithArgs("key").WillReturnError(errFakeDatabase)
			},
			run: func(d *Database) error {
				return d.NewKeyValueStore().Remove("key")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withMockDatabase(t, func(d *Database, mock sqlmock.Sqlmock) {
				tt.expect(mock)
				err := tt.run(d)
				assert.ErrorIs(t, err, errFakeDatabase)
				assert.ErrorContains(t, err, `key "key"`)
			})
		})
	}
}

func TestKeyValueStoreParsesStoredJSON(t *testing.T) {
	withMockDatabase(t, func(d *Database, mock sqlmock.Sqlmock) {
		mock.ExpectQuery(regexp.QuoteMeta(queryGetValue)).WithArgs("key").
			WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"a":[1,2]}`))
		value, ok, err := d.NewKeyValueStore().Get("key")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, `{"a":[1,2]}`, value.JSONString())
	})
}

func TestEventStoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		run    func(s pkevents.EventStore) error
	}{
		{
			name: "append",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryAppendEvent)).WillReturnError(errFakeDatabase)
			},
			run: func(s pkevents.EventStore) error {
				return s.Append(pkevents.StoredEvent{ID: "a", Time: time.Now()})
			},
		},
		{
			name: "prune",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(regexp.QuoteMeta(queryEventSizes)).WillReturnError(errFakeDatabase)
				mock.ExpectRollback()
			},
			run: func(s pkevents.EventStore) error {
				_, err := s.Prune(10)
				return err
			},
		},
		{
			name: "snapshot",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(querySelectEvents)).WillReturnError(errFakeDatabase)
			},
			run: func(s pkevents.EventStore) error {
				_, err := s.Snapshot(10)
				return err
			},
		},
		{
			name: "delete rolls back",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(queryDeleteEvent)).WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(queryDeleteEvent)).WithArgs("b").WillReturnError(errFakeDatabase)
				mock.ExpectRollback()
			},
			run: func(s pkevents.EventStore) error {
				return s.Delete([]string{"a", "b"})
			},
		},
		{
			name: "size",
			expect: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryEventsSize)).WillReturnError(errFakeDatabase)
			},
			run: func(s pkevents.EventStore) error {
				_, err := s.Size()
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withMockDatabase(t, func(d *Database, mock sqlmock.Sqlmock) {
				tt.expect(mock)
				assert.ErrorIs(t, tt.run(d.NewEventStore()), errFakeDatabase)
			})
		})
	}
}

func TestEventStorePruneDeletesInPruneOrder(t *testing.T) {
	withMockDatabase(t, func(d *Database, mock sqlmock.Sqlmock) {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(queryEventSizes)).WillReturnRows(
			sqlmock.NewRows([]string{"id", "priority", "size"}).
				AddRow("n1", int(pkevents.PriorityNormal), 10).
				AddRow("l1", int(pkevents.PriorityLow), 10).
				AddRow("h1", int(pkevents.PriorityHigh), 10))
		mock.ExpectExec(regexp.QuoteMeta(queryDeleteEvent)).WithArgs("l1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta(queryDeleteEvent)).WithArgs("n1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		n, err := d.NewEventStore().Prune(10)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestScheduleStoreCacheServesGet(t *testing.T) {
	withMockDatabase(t, func(d *Database, mock sqlmock.Sqlmock) {
		store := d.NewScheduleStore(10)
		defer store.Close() //nolint:errcheck

		sched := pkautomation.Schedule{ID: "a", Info: pkautomation.ScheduleInfo{Group: "g"}, CreatedAt: time.UnixMilli(1000)}
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(scheduleTableQueries[SchedulesTable].put)).
			WithArgs("a", "g", int64(1000), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		require.NoError(t, store.Put(sched))

		got, found, err := store.Get("a")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "g", got.Info.Group)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(scheduleTableQueries[SchedulesTable].delete)).WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()
		require.NoError(t, store.Delete("a"))

		mock.ExpectQuery(regexp.QuoteMeta(scheduleTableQueries[SchedulesTable].get)).WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"data"}))
		_, found, err = store.Get("a")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestScheduleStoreFailedPutIsNotCached(t *testing.T) {
	withMockDatabase(t, func(d *Database, mock sqlmock.Sqlmock) {
		store := d.NewScheduleStore(10)
		defer store.Close() //nolint:errcheck

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(scheduleTableQueries[SchedulesTable].put)).WillReturnError(errFakeDatabase)
		mock.ExpectRollback()
		err := store.Put(pkautomation.Schedule{ID: "a"})
		assert.ErrorIs(t, err, errFakeDatabase)

		mock.ExpectQuery(regexp.QuoteMeta(scheduleTableQueries[SchedulesTable].get)).WithArgs("a").WillReturnError(errFakeDatabase)
		_, _, err = store.Get("a")
		assert.ErrorIs(t, err, errFakeDatabase)
	})
}

func TestScheduleStoreAfterCloseSkipsCache(t *testing.T) {
	withMockDatabase(t, func(d *Database, mock sqlmock.Sqlmock) {
		store := d.NewScheduleStore(10)
		require.NoError(t, store.Close())

		mock.ExpectQuery(regexp.QuoteMeta(scheduleTableQueries[SchedulesTable].get)).WithArgs("a").
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"id":"a","state":"paused"}`))
		got, found, err := store.Get("a")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, pkautomation.StatePaused, got.State)
	})
}
