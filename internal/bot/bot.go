package bot

import (
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/HolyStarGazer/discord-galaxy-bot/config"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/ai"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/database"
	commands "github.com/HolyStarGazer/discord-galaxy-bot/internal/features"
	featuresmusic "github.com/HolyStarGazer/discord-galaxy-bot/internal/features/music"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/leveling"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/music"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/ratelimit"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/redis"
)

type Bot struct {
	config       *config.Config
	logger       *slog.Logger
	sessions     []*discordgo.Session
	engine       *music.Engine
	limiter      *ratelimit.Limiter
	started      bool
	presenceStop chan struct{}
}

func New(cfg *config.Config, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbConfig := &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	if err := database.Initialize(dbConfig); err != nil {
		logger.Warn("database initialization failed, leveling disabled", "error", err)
	}

	redisConfig := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	if _, err := redis.Init(redisConfig); err != nil {
		logger.Warn("redis initialization failed, using in-process cooldowns", "error", err)
	}

	shardCount := cfg.ShardCount
	if shardCount < 1 {
		s, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return nil, err
		}

		if gw, err := s.GatewayBot(); err == nil && gw.Shards > 0 {
			shardCount = gw.Shards
		} else {
			logger.Warn("failed to auto-detect shard count, defaulting to 1", "error", err)
			shardCount = 1
		}
	}

	if shardCount < 1 {
		shardCount = 1
	}

	sessions := make([]*discordgo.Session, 0, shardCount)
	for shard := 0; shard < shardCount; shard++ {
		s, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return nil, err
		}

		s.Identify.Intents = discordgo.IntentsGuilds |
			discordgo.IntentsGuildVoiceStates |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsMessageContent

		if shardCount > 1 {
			s.Identify.Shard = &[2]int{shard, shardCount}
			s.ShardCount = shardCount
		}

		sessions = append(sessions, s)
	}

	b := &Bot{
		config:   cfg,
		logger:   logger,
		sessions: sessions,
	}
	b.wireFeatures()
	return b, nil
}

// wireFeatures builds the playback engine and services, then hands them to
// the command surface.
func (b *Bot) wireFeatures() {
	cfg := b.config

	registry := music.NewRegistry()
	registry.SetDefaultVolume(cfg.DefaultVolume)
	b.engine = music.NewEngine(
		registry,
		music.NewSessionDialer(b.sessions...),
		music.NewFFmpegOpener(b.logger),
		b.logger,
		music.EngineConfig{
			IdleTimeout: time.Duration(cfg.AutoLeaveTimeout) * time.Second,
		},
	)
	b.engine.SetAnnouncer(featuresmusic.NewNotifier(b.sessions[0], b.logger))

	var catalog *music.CatalogClient
	if cfg.CatalogClientID != "" {
		opts := []music.CatalogOption{music.WithCatalogLogger(b.logger)}
		if cfg.CatalogBaseURL != "" {
			opts = append(opts, music.WithCatalogBaseURL(cfg.CatalogBaseURL))
		}
		c, err := music.NewCatalogClient(cfg.CatalogClientID, opts...)
		if err != nil {
			b.logger.Warn("catalog client unavailable", "error", err)
		} else {
			catalog = c
		}
	} else {
		b.logger.Warn("CATALOG_CLIENT_ID not set, music commands disabled")
	}

	levels := leveling.NewService(
		database.NewUserRepository(),
		redis.Client(),
		leveling.Settings{
			XPPerMessageMin: cfg.XPPerMessageMin,
			XPPerMessageMax: cfg.XPPerMessageMax,
			XPCooldown:      time.Duration(cfg.XPCooldownSeconds) * time.Second,
			DailyBonus:      int64(cfg.DailyXPBonus),
		},
		b.logger,
	)

	chat := ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, b.logger)
	if chat == nil {
		b.logger.Info("OPENAI_API_KEY not set, /chat disabled")
	}

	b.limiter = ratelimit.New(
		ratelimit.Limit{Every: 3 * time.Second, Burst: 3},
		map[string]ratelimit.Limit{
			"chat":  {Every: 15 * time.Second, Burst: 2},
			"music": {Every: 2 * time.Second, Burst: 5},
		},
	)

	commands.Setup(commands.Deps{
		Engine:  b.engine,
		Catalog: catalog,
		Levels:  levels,
		Chat:    chat,
		Limiter: b.limiter,
		Logger:  b.logger,
	})
}

func (b *Bot) Start() error {
	if b.started {
		return nil
	}

	if len(b.sessions) == 0 {
		return nil
	}

	for _, s := range b.sessions {
		b.registerHandlers(s)
		commands.AddHandlers(s)
	}

	if _, err := commands.RegisterCommands(b.sessions[0], b.config.ApplicationID, b.config.GuildID); err != nil {
		b.logger.Warn("failed to register slash commands", "error", err)
	}

	for _, s := range b.sessions {
		if err := s.Open(); err != nil {
			return err
		}
	}

	b.startPresenceUpdater()
	b.started = true
	b.logger.Info("bot sessions opened", "shards", len(b.sessions))
	return nil
}

func (b *Bot) registerHandlers(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if s.State != nil && s.State.User != nil {
			b.logger.Info("bot ready", "username", s.State.User.Username)
		} else {
			b.logger.Info("bot ready")
		}
		b.updatePresence()
	})
}

func (b *Bot) Stop() error {
	if !b.started {
		return nil
	}

	b.started = false
	b.stopPresenceUpdater()

	if b.limiter != nil {
		b.limiter.Close()
	}

	for _, s := range b.sessions {
		if err := s.Close(); err != nil {
			return err
		}
	}

	if err := database.Close(); err != nil {
		b.logger.Warn("failed to close database", "error", err)
	}

	if err := redis.Close(); err != nil {
		b.logger.Warn("failed to close redis", "error", err)
	}

	b.logger.Info("bot sessions closed", "shards", len(b.sessions))
	return nil
}
