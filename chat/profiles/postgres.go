package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/logger"
)

const component = "service.profiles"

const selectProfiles = `SELECT user_id, language, name, age, gender, country, region,
	premium_until, blocked, blocklist, created_at, updated_at
	FROM profiles`

const upsertProfile = `INSERT INTO profiles (user_id, language, name, age, gender, country, region,
	premium_until, blocked, blocklist, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (user_id) DO UPDATE SET
	language = EXCLUDED.language,
	name = EXCLUDED.name,
	age = EXCLUDED.age,
	gender = EXCLUDED.gender,
	country = EXCLUDED.country,
	region = EXCLUDED.region,
	premium_until = EXCLUDED.premium_until,
	blocked = EXCLUDED.blocked,
	blocklist = EXCLUDED.blocklist,
	updated_at = EXCLUDED.updated_at`

type profileRow struct {
	UserID       int64         `db:"user_id"`
	Language     string        `db:"language"`
	Name         string        `db:"name"`
	Age          int           `db:"age"`
	Gender       string        `db:"gender"`
	Country      string        `db:"country"`
	Region       string        `db:"region"`
	PremiumUntil sql.NullTime  `db:"premium_until"`
	Blocked      bool          `db:"blocked"`
	Blocklist    pq.Int64Array `db:"blocklist"`
	CreatedAt    time.Time     `db:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at"`
}

func (r profileRow) profile() engine.Profile {
	p := engine.Profile{
		UserID:    engine.UserID(r.UserID),
		Language:  r.Language,
		Name:      r.Name,
		Age:       r.Age,
		Gender:    engine.Gender(r.Gender),
		Country:   r.Country,
		Region:    r.Region,
		Blocked:   r.Blocked,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.PremiumUntil.Valid {
		p.PremiumUntil = r.PremiumUntil.Time
	}
	for _, id := range r.Blocklist {
		p.Blocklist = append(p.Blocklist, engine.UserID(id))
	}
	return p
}

// Postgres stores profiles in the profiles table.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// LoadProfile returns the stored profile of id. The boolean is false when
// the user has never been saved.
func (s *Postgres) LoadProfile(ctx context.Context, id engine.UserID) (engine.Profile, bool, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, selectProfiles+` WHERE user_id = $1`, int64(id))
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Profile{}, false, nil
	}
	if err != nil {
		logger.Error(ctx, component, "profile.load.fail",
			slog.Int64("user_id", int64(id)),
			slog.String("err", err.Error()),
		)
		return engine.Profile{}, false, fmt.Errorf("load profile %d: %w", id, err)
	}
	return row.profile(), true, nil
}

// SaveProfile inserts or updates p.
func (s *Postgres) SaveProfile(ctx context.Context, p engine.Profile) error {
	blocklist := make(pq.Int64Array, 0, len(p.Blocklist))
	for _, id := range p.Blocklist {
		blocklist = append(blocklist, int64(id))
	}
	premium := sql.NullTime{Time: p.PremiumUntil, Valid: !p.PremiumUntil.IsZero()}

	start := time.Now()
	_, err := s.db.ExecContext(ctx, upsertProfile,
		int64(p.UserID), p.Language, p.Name, p.Age, string(p.Gender), p.Country, p.Region,
		premium, p.Blocked, blocklist, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		logger.Error(ctx, component, "profile.save.fail",
			slog.Int64("user_id", int64(p.UserID)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("save profile %d: %w", p.UserID, err)
	}
	logger.Debug(ctx, component, "profile.save",
		slog.Int64("user_id", int64(p.UserID)),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return nil
}

// ListProfiles returns every stored profile ordered by user id.
func (s *Postgres) ListProfiles(ctx context.Context) ([]engine.Profile, error) {
	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows, selectProfiles+` ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	out := make([]engine.Profile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.profile())
	}
	logger.Info(ctx, component, "profile.preload", slog.Int("count", len(out)))
	return out, nil
}
