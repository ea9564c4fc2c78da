// Package leveling tracks per-guild user XP and levels: passive XP for
// chatting (rate limited per user) and a once-per-day bonus claim.
package leveling

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/HolyStarGazer/discord-galaxy-bot/internal/database"
)

// Settings holds the tunable XP parameters.
type Settings struct {
	XPPerMessageMin int
	XPPerMessageMax int
	XPCooldown      time.Duration
	DailyBonus      int64
}

func (s Settings) withDefaults() Settings {
	if s.XPPerMessageMin <= 0 {
		s.XPPerMessageMin = 15
	}
	if s.XPPerMessageMax < s.XPPerMessageMin {
		s.XPPerMessageMax = s.XPPerMessageMin + 10
	}
	if s.XPCooldown <= 0 {
		s.XPCooldown = time.Minute
	}
	if s.DailyBonus <= 0 {
		s.DailyBonus = 100
	}
	return s
}

// CalculateLevel converts total XP to a level. Level 1 starts at 0 XP and
// each level requires quadratically more.
func CalculateLevel(xp int64) int {
	if xp < 0 {
		return 1
	}
	return int(math.Sqrt(float64(xp)/100)) + 1
}

// XPForLevel returns the total XP needed to reach the given level.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	l := int64(level - 1)
	return l * l * 100
}

// AwardResult describes the outcome of a message XP award.
type AwardResult struct {
	Awarded   int64
	TotalXP   int64
	Level     int
	LeveledUp bool
}

// Service applies the progression rules on top of the user repository. The
// per-user message cooldown lives in redis so it survives restarts; without
// redis it degrades to an in-process map.
type Service struct {
	repo     *database.UserRepository
	redis    *redislib.Client
	settings Settings
	logger   *slog.Logger

	mu        sync.Mutex
	cooldowns map[string]time.Time
}

func NewService(repo *database.UserRepository, redis *redislib.Client, settings Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		redis:     redis,
		settings:  settings.withDefaults(),
		logger:    logger,
		cooldowns: make(map[string]time.Time),
	}
}

// AwardMessageXP grants random XP for a message, subject to the per-user
// cooldown. Returns nil when the user is still cooling down.
func (s *Service) AwardMessageXP(ctx context.Context, guildID, userID string) (*AwardResult, error) {
	if !s.takeCooldown(ctx, guildID, userID) {
		return nil, nil
	}

	span := s.settings.XPPerMessageMax - s.settings.XPPerMessageMin + 1
	amount := int64(s.settings.XPPerMessageMin + rand.Intn(span))

	before, err := s.repo.GetUser(guildID, userID)
	if err != nil {
		return nil, err
	}

	newLevel := CalculateLevel(before.XP + amount)
	rec, err := s.repo.AddXP(guildID, userID, amount, newLevel)
	if err != nil {
		return nil, err
	}

	result := &AwardResult{
		Awarded:   amount,
		TotalXP:   rec.XP,
		Level:     rec.Level,
		LeveledUp: rec.Level > before.Level,
	}
	if result.LeveledUp {
		s.logger.Info("user leveled up",
			"guild_id", guildID, "user_id", userID, "level", rec.Level)
	}
	return result, nil
}

// ClaimDaily grants the daily bonus. Returns ok=false when the user already
// claimed today (UTC days).
func (s *Service) ClaimDaily(ctx context.Context, guildID, userID string) (*AwardResult, bool, error) {
	before, err := s.repo.GetUser(guildID, userID)
	if err != nil {
		return nil, false, err
	}

	newLevel := CalculateLevel(before.XP + s.settings.DailyBonus)
	rec, ok, err := s.repo.ClaimDaily(guildID, userID, s.settings.DailyBonus, newLevel)
	if err != nil || !ok {
		return nil, false, err
	}

	return &AwardResult{
		Awarded:   s.settings.DailyBonus,
		TotalXP:   rec.XP,
		Level:     rec.Level,
		LeveledUp: rec.Level > before.Level,
	}, true, nil
}

// Profile is a user's progression snapshot for display.
type Profile struct {
	UserID        string
	XP            int64
	Level         int
	NextLevelXP   int64
	TotalMessages int64
	Rank          int
}

func (s *Service) GetProfile(guildID, userID string) (Profile, error) {
	rec, err := s.repo.GetUser(guildID, userID)
	if err != nil {
		return Profile{}, err
	}
	rank, err := s.repo.Rank(guildID, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		UserID:        userID,
		XP:            rec.XP,
		Level:         rec.Level,
		NextLevelXP:   XPForLevel(rec.Level + 1),
		TotalMessages: rec.TotalMessages,
		Rank:          rank,
	}, nil
}

func (s *Service) Leaderboard(guildID string, limit int) ([]database.UserRecord, error) {
	return s.repo.TopUsers(guildID, limit)
}

// SetLevel pins a member to a level and returns the XP they were aligned to.
// Used by the moderator /setlevel command.
func (s *Service) SetLevel(guildID, userID string, level int) (int64, error) {
	if level < 1 {
		return 0, fmt.Errorf("level must be at least 1, got %d", level)
	}
	xp := XPForLevel(level)
	if err := s.repo.SetLevel(guildID, userID, level, xp); err != nil {
		return 0, err
	}
	return xp, nil
}

// takeCooldown reports whether the user may earn XP now, and if so starts a
// fresh cooldown window.
func (s *Service) takeCooldown(ctx context.Context, guildID, userID string) bool {
	if s.redis != nil {
		key := fmt.Sprintf("xp:cooldown:%s:%s", guildID, userID)
		ok, err := s.redis.SetNX(ctx, key, 1, s.settings.XPCooldown).Result()
		if err == nil {
			return ok
		}
		s.logger.Warn("redis cooldown check failed, using local fallback", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := guildID + ":" + userID
	now := time.Now()
	if until, found := s.cooldowns[key]; found && now.Before(until) {
		return false
	}
	s.cooldowns[key] = now.Add(s.settings.XPCooldown)
	return true
}
