package repository

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/okian/podium/internal/domain/history"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/performance"
	"github.com/okian/podium/pkg/logger"
	"github.com/okian/podium/pkg/metrics"
)

// recordRow is the records table. Timestamps are Unix nanoseconds and the
// achieved date is kept as YYYY-MM-DD text.
type recordRow struct {
	ID              string  `gorm:"column:id;primaryKey;type:text"`
	DisciplineID    string  `gorm:"column:discipline_id;not null;index:ix_records_key"`
	Gender          string  `gorm:"column:gender;not null;index:ix_records_key"`
	Category        string  `gorm:"column:category;not null;index:ix_records_key"`
	Kind            string  `gorm:"column:kind;not null"`
	AthleteID       string  `gorm:"column:athlete_id"`
	LocationID      string  `gorm:"column:location_id"`
	AchievedOn      string  `gorm:"column:achieved_on;not null"`
	Unit            uint8   `gorm:"column:unit;not null"`
	DurationMicros  int64   `gorm:"column:duration_micros"`
	DistanceMeters  float64 `gorm:"column:distance_m"`
	IsCurrent       bool    `gorm:"column:is_current;not null"`
	PreviousRecord  *string `gorm:"column:previous_record;index"`
	CreatedUnixNano int64   `gorm:"column:created_at;not null"`
	UpdatedUnixNano int64   `gorm:"column:updated_at;not null"`
}

func (recordRow) TableName() string { return "records" }

const currentIndexDDL = `CREATE UNIQUE INDEX IF NOT EXISTS ux_records_current
	ON records(discipline_id, gender, category) WHERE is_current`

func toRow(rec model.Record) (recordRow, error) {
	if rec.Performance.Micros() > math.MaxInt64 {
		return recordRow{}, fmt.Errorf("%w: %d microseconds", ErrOutOfRange, rec.Performance.Micros())
	}
	row := recordRow{
		ID:              rec.ID.String(),
		DisciplineID:    rec.DisciplineID,
		Gender:          rec.Gender.String(),
		Category:        rec.Category.String(),
		Kind:            rec.Kind.String(),
		AthleteID:       rec.AthleteID,
		LocationID:      rec.LocationID,
		AchievedOn:      rec.AchievedOn.UTC().Format(model.DateLayout),
		Unit:            uint8(rec.Performance.Unit()),
		DurationMicros:  int64(rec.Performance.Micros()),
		DistanceMeters:  rec.Performance.Meters(),
		IsCurrent:       rec.IsCurrent,
		CreatedUnixNano: rec.CreatedAt.UnixNano(),
		UpdatedUnixNano: rec.UpdatedAt.UnixNano(),
	}
	if rec.PreviousRecord.Valid {
		prev := rec.PreviousRecord.UUID.String()
		row.PreviousRecord = &prev
	}
	return row, nil
}

func fromRow(row recordRow) (model.Record, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return model.Record{}, fmt.Errorf("row id: %w", err)
	}
	kind, err := performance.ParseKind(row.Kind)
	if err != nil {
		return model.Record{}, fmt.Errorf("row %s: %w", row.ID, err)
	}
	gender, err := model.ParseGender(row.Gender)
	if err != nil {
		return model.Record{}, fmt.Errorf("row %s: %w", row.ID, err)
	}
	category, err := model.ParseAgeCategory(row.Category)
	if err != nil {
		return model.Record{}, fmt.Errorf("row %s: %w", row.ID, err)
	}
	achieved, err := time.Parse(model.DateLayout, row.AchievedOn)
	if err != nil {
		return model.Record{}, fmt.Errorf("row %s: %w", row.ID, err)
	}
	if row.DurationMicros < 0 {
		return model.Record{}, fmt.Errorf("row %s: %w: negative duration", row.ID, ErrOutOfRange)
	}
	perf, err := performance.FromParts(performance.Unit(row.Unit), uint64(row.DurationMicros), row.DistanceMeters)
	if err != nil {
		return model.Record{}, fmt.Errorf("row %s: %w", row.ID, err)
	}

	rec := model.Record{
		ID:           id,
		DisciplineID: row.DisciplineID,
		Kind:         kind,
		AthleteID:    row.AthleteID,
		LocationID:   row.LocationID,
		AchievedOn:   achieved,
		Performance:  perf,
		Gender:       gender,
		Category:     category,
		IsCurrent:    row.IsCurrent,
		CreatedAt:    time.Unix(0, row.CreatedUnixNano).UTC(),
		UpdatedAt:    time.Unix(0, row.UpdatedUnixNano).UTC(),
	}
	if row.PreviousRecord != nil {
		prev, err := uuid.Parse(*row.PreviousRecord)
		if err != nil {
			return model.Record{}, fmt.Errorf("row %s previous: %w", row.ID, err)
		}
		rec.PreviousRecord = uuid.NullUUID{UUID: prev, Valid: true}
	}
	return rec, nil
}

func fromRows(rows []recordRow) ([]model.Record, error) {
	out := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SQLStore persists records in SQLite through gorm.
//
// File databases run in WAL mode with a busy timeout and a pool of several
// connections, so scopes of different keys overlap and only their commits
// serialize. A scope whose snapshot went stale under another key's commit
// is re-run like an optimistic conflict. In-memory databases cannot use WAL
// and get a single connection: their scopes run one at a time.
type SQLStore struct {
	settings
	locks  *keyLocks
	db     *gorm.DB
	closed atomic.Bool
}

// sqliteDSN adds the connection pragmas to dsn and reports whether it names
// an in-memory database.
func sqliteDSN(dsn string, busy time.Duration) (string, bool) {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return dsn, true
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", dsn, sep, busy.Milliseconds()), false
}

// isBusy reports a lock or stale-snapshot failure that a re-run can clear.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// OpenSQLStore opens dsn and migrates the records table.
func OpenSQLStore(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{settings: newSettings(opts), locks: newKeyLocks()}
	s.log = s.log.Named("sqlite")

	full, inMemory := sqliteDSN(dsn, s.busyTimeout)
	conns := s.maxOpenConns
	if inMemory {
		conns = 1
	}

	db, err := gorm.Open(sqlite.Open(full), &gorm.Config{Logger: newGormLogger(s.log)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)

	if err := db.WithContext(ctx).AutoMigrate(&recordRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate records: %w", err)
	}
	if err := db.WithContext(ctx).Exec(currentIndexDDL).Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create current index: %w", err)
	}
	s.db = db
	s.log.Info(ctx, "sqlite store ready",
		logger.Int("max_open_conns", conns),
		logger.Bool("in_memory", inMemory))
	return s, nil
}

// WithinKey runs fn inside one SQL transaction while holding the key lock.
// A transaction that fails on a busy database is rolled back and fn re-run
// up to the configured retry limit, after which ErrContention is returned.
func (s *SQLStore) WithinKey(ctx context.Context, key model.RecordKey, fn func(history.KeyTx) error) (err error) {
	start := time.Now()
	defer func() { observe(DriverSQLite, "within_key", start, err) }()

	if s.closed.Load() {
		return ErrClosed
	}
	unlock, err := s.locks.lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(&sqlTx{db: gtx, key: key, log: s.log})
		})
		if !isBusy(err) {
			return err
		}

		metrics.RecordStoreConflict(string(DriverSQLite))
		if attempt >= s.maxConflictRetries {
			s.log.Warn(ctx, "giving up on busy database",
				logger.String("key", key.String()),
				logger.Int("attempts", attempt+1),
				logger.Error(err))
			return fmt.Errorf("%w: %s: %w", ErrContention, key, err)
		}
		s.log.Debug(ctx, "database busy, retrying",
			logger.String("key", key.String()),
			logger.Int("attempt", attempt+1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}
}

// FindCurrent returns the current record of key.
func (s *SQLStore) FindCurrent(ctx context.Context, key model.RecordKey) (rec model.Record, ok bool, err error) {
	start := time.Now()
	defer func() { observe(DriverSQLite, "find_current", start, err) }()
	return findCurrent(s.db.WithContext(ctx), key)
}

func findCurrent(db *gorm.DB, key model.RecordKey) (model.Record, bool, error) {
	var rows []recordRow
	err := db.Where("discipline_id = ? AND gender = ? AND category = ? AND is_current = ?",
		key.DisciplineID, key.Gender.String(), key.Category.String(), true).
		Limit(1).Find(&rows).Error
	if err != nil || len(rows) == 0 {
		return model.Record{}, false, err
	}
	rec, err := fromRow(rows[0])
	return rec, err == nil, err
}

// Get returns the record with the given id.
func (s *SQLStore) Get(ctx context.Context, id uuid.UUID) (rec model.Record, ok bool, err error) {
	start := time.Now()
	defer func() { observe(DriverSQLite, "get", start, err) }()

	var rows []recordRow
	if err := s.db.WithContext(ctx).Where("id = ?", id.String()).Limit(1).Find(&rows).Error; err != nil {
		return model.Record{}, false, err
	}
	if len(rows) == 0 {
		return model.Record{}, false, nil
	}
	rec, err = fromRow(rows[0])
	return rec, err == nil, err
}

// FindByPrevious returns the records whose PreviousRecord is id.
func (s *SQLStore) FindByPrevious(ctx context.Context, id uuid.UUID) (recs []model.Record, err error) {
	start := time.Now()
	defer func() { observe(DriverSQLite, "find_by_previous", start, err) }()

	var rows []recordRow
	err = s.db.WithContext(ctx).Where("previous_record = ?", id.String()).
		Order("achieved_on, created_at").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// ListCurrent returns every current record.
func (s *SQLStore) ListCurrent(ctx context.Context) (recs []model.Record, err error) {
	start := time.Now()
	defer func() { observe(DriverSQLite, "list_current", start, err) }()

	var rows []recordRow
	if err := s.db.WithContext(ctx).Where("is_current = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// Close closes the connection pool.
func (s *SQLStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqlTx struct {
	db  *gorm.DB
	key model.RecordKey
	log logger.Logger
}

func (tx *sqlTx) FindCurrent(ctx context.Context) (model.Record, bool, error) {
	return findCurrent(tx.db.WithContext(ctx), tx.key)
}

func (tx *sqlTx) Insert(ctx context.Context, rec model.Record) error {
	if err := checkRecord(tx.key, rec); err != nil {
		return err
	}
	var n int64
	if err := tx.db.WithContext(ctx).Model(&recordRow{}).Where("id = ?", rec.ID.String()).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", history.ErrDuplicateID, rec.ID)
	}
	if rec.IsCurrent {
		_, ok, err := tx.FindCurrent(ctx)
		if err != nil {
			return err
		}
		if ok {
			return ErrDuplicateCurrent
		}
	}

	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := tx.db.WithContext(ctx).Create(&row).Error; err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "UNIQUE constraint failed: records.id"):
			return fmt.Errorf("%w: %s: %w", history.ErrDuplicateID, rec.ID, err)
		case strings.Contains(msg, "UNIQUE constraint failed"):
			return fmt.Errorf("%w: %w", ErrDuplicateCurrent, err)
		}
		return err
	}
	tx.log.Debug(ctx, "inserted record",
		logger.String("key", tx.key.String()),
		logger.String("id", row.ID),
		logger.Bool("current", rec.IsCurrent))
	return nil
}

func (tx *sqlTx) Demote(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := tx.db.WithContext(ctx).Model(&recordRow{}).
		Where("id = ? AND discipline_id = ? AND gender = ? AND category = ? AND is_current = ?",
			id.String(), tx.key.DisciplineID, tx.key.Gender.String(), tx.key.Category.String(), true).
		Updates(map[string]interface{}{"is_current": false, "updated_at": at.UnixNano()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s in %s", ErrNotCurrent, id, tx.key)
	}
	tx.log.Debug(ctx, "demoted record",
		logger.String("key", tx.key.String()),
		logger.Stringer("id", id))
	return nil
}
