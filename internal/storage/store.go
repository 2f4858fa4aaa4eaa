package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"medical-book/internal/rangecheck"
)

// Store is the data access layer over the three health-record tables. It is
// safe for concurrent use; the database is its only synchronisation.
type Store struct {
	db  *sql.DB
	orm *gorm.DB
	log zerolog.Logger

	cost      int
	rule      *rangecheck.Rule
	now       func() time.Time
	seedDemo  bool
	dummyHash []byte
}

type Option func(*Store)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

func WithBcryptCost(cost int) Option {
	return func(s *Store) { s.cost = cost }
}

func WithRule(r *rangecheck.Rule) Option {
	return func(s *Store) { s.rule = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithDemoSeed(enabled bool) Option {
	return func(s *Store) { s.seedDemo = enabled }
}

// New wraps an already migrated database.
func New(db *sql.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:       db,
		log:      zerolog.Nop(),
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		seedDemo: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rule == nil {
		s.rule = rangecheck.MustCompile(rangecheck.DefaultRule)
	}
	if s.cost < bcrypt.MinCost || s.cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", s.cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	orm, err := gorm.Open(&sqlite.Dialector{Conn: db}, &gorm.Config{
		Logger:                 gormlogger.Discard,
		NowFunc:                func() time.Time { return s.now().UTC() },
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	s.orm = orm

	// Compared against when an email is unknown, so a miss costs as much as
	// a wrong password.
	s.dummyHash, err = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return s, nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// translate maps gorm and driver errors onto the package's error kinds.
func (s *Store) translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.As(err, &verr):
		return err
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, ErrInvalidPassword):
		return err
	}
	s.log.Error().Err(err).Str("op", op).Msg("storage failure")
	return &StorageError{Op: op, Err: err}
}
