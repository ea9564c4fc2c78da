package database

import (
	"context"
	"database/sql"
	"time"
)

const userRepoTimeout = 2 * time.Second

type UserRecord struct {
	GuildID       string
	UserID        string
	XP            int64
	Level         int
	TotalMessages int64
	LastDaily     sql.NullTime
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository() *UserRepository {
	return &UserRepository{db: GetDB()}
}

// GetUser loads a user's progression row. A missing row comes back as a
// zero-XP level-1 record without an error.
func (r *UserRepository) GetUser(guildID, userID string) (UserRecord, error) {
	rec := UserRecord{GuildID: guildID, UserID: userID, Level: 1}
	if r == nil || r.db == nil {
		return rec, nil
	}
	if guildID == "" || userID == "" {
		return rec, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), userRepoTimeout)
	defer cancel()

	const query = `
		SELECT xp, level, total_messages, last_daily
		FROM users
		WHERE guild_id = $1 AND user_id = $2
	`

	err := r.db.QueryRowContext(ctx, query, guildID, userID).
		Scan(&rec.XP, &rec.Level, &rec.TotalMessages, &rec.LastDaily)
	if err != nil {
		if err == sql.ErrNoRows {
			return rec, nil
		}
		return rec, err
	}
	return rec, nil
}

// AddXP applies an XP delta and the recomputed level, creating the row on
// first contact. Returns the updated record.
func (r *UserRepository) AddXP(guildID, userID string, delta int64, newLevel int) (UserRecord, error) {
	rec := UserRecord{GuildID: guildID, UserID: userID, Level: 1}
	if r == nil || r.db == nil {
		return rec, nil
	}
	if guildID == "" || userID == "" {
		return rec, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), userRepoTimeout)
	defer cancel()

	const query = `
		INSERT INTO users (guild_id, user_id, xp, level, total_messages, updated_at)
		VALUES ($1, $2, $3, $4, 1, NOW())
		ON CONFLICT (guild_id, user_id)
		DO UPDATE SET
			xp = users.xp + EXCLUDED.xp,
			level = $4,
			total_messages = users.total_messages + 1,
			updated_at = NOW()
		RETURNING xp, level, total_messages;
	`

	err := r.db.QueryRowContext(ctx, query, guildID, userID, delta, newLevel).
		Scan(&rec.XP, &rec.Level, &rec.TotalMessages)
	if err != nil {
		return rec, err
	}
	return rec, nil
}

// SetLevel pins a member to a level, overwriting XP with the level's floor.
// Upserts so moderators can set levels for members with no row yet.
func (r *UserRepository) SetLevel(guildID, userID string, level int, xp int64) error {
	if r == nil || r.db == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), userRepoTimeout)
	defer cancel()

	const query = `
		INSERT INTO users (guild_id, user_id, xp, level, updated_at)
		VALUES ($1, $2, $4, $3, NOW())
		ON CONFLICT (guild_id, user_id)
		DO UPDATE SET level = $3, xp = $4, updated_at = NOW();
	`

	_, err := r.db.ExecContext(ctx, query, guildID, userID, level, xp)
	return err
}

// claimDailyQuery rejects a second claim on the same UTC day. Both sides of
// the date comparison are cast through UTC so the guard is independent of
// the database server's session timezone.
const claimDailyQuery = `
	UPDATE users
	SET xp = xp + $3, level = $4, last_daily = NOW(), updated_at = NOW()
	WHERE guild_id = $1 AND user_id = $2
		AND (last_daily IS NULL
			OR (last_daily AT TIME ZONE 'utc')::date < (NOW() AT TIME ZONE 'utc')::date)
	RETURNING xp, level, total_messages, last_daily;
`

// ClaimDaily stamps last_daily and applies the bonus in one statement. ok
// reports whether the claim went through.
func (r *UserRepository) ClaimDaily(guildID, userID string, bonus int64, newLevel int) (UserRecord, bool, error) {
	rec := UserRecord{GuildID: guildID, UserID: userID, Level: 1}
	if r == nil || r.db == nil {
		return rec, false, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), userRepoTimeout)
	defer cancel()

	const insert = `
		INSERT INTO users (guild_id, user_id, xp, level, last_daily, updated_at)
		VALUES ($1, $2, 0, 1, NULL, NOW())
		ON CONFLICT (guild_id, user_id) DO NOTHING;
	`
	if _, err := r.db.ExecContext(ctx, insert, guildID, userID); err != nil {
		return rec, false, err
	}

	err := r.db.QueryRowContext(ctx, claimDailyQuery, guildID, userID, bonus, newLevel).
		Scan(&rec.XP, &rec.Level, &rec.TotalMessages, &rec.LastDaily)
	if err != nil {
		if err == sql.ErrNoRows {
			return rec, false, nil
		}
		return rec, false, err
	}
	return rec, true, nil
}

// TopUsers returns the guild leaderboard ordered by XP.
func (r *UserRepository) TopUsers(guildID string, limit int) ([]UserRecord, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	if limit < 1 {
		limit = 10
	}

	ctx, cancel := context.WithTimeout(context.Background(), userRepoTimeout)
	defer cancel()

	const query = `
		SELECT user_id, xp, level, total_messages
		FROM users
		WHERE guild_id = $1
		ORDER BY xp DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, guildID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []UserRecord
	for rows.Next() {
		rec := UserRecord{GuildID: guildID}
		if err := rows.Scan(&rec.UserID, &rec.XP, &rec.Level, &rec.TotalMessages); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Rank returns the user's 1-indexed position on the guild leaderboard.
func (r *UserRepository) Rank(guildID, userID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), userRepoTimeout)
	defer cancel()

	const query = `
		SELECT COUNT(*) + 1
		FROM users
		WHERE guild_id = $1
			AND xp > (SELECT COALESCE(MAX(xp), 0) FROM users WHERE guild_id = $1 AND user_id = $2)
	`

	var rank int
	if err := r.db.QueryRowContext(ctx, query, guildID, userID).Scan(&rank); err != nil {
		return 0, err
	}
	return rank, nil
}
