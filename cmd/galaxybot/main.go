package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/HolyStarGazer/discord-galaxy-bot/config"
	"github.com/HolyStarGazer/discord-galaxy-bot/internal/bot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n\n", err)
		fmt.Fprintln(os.Stderr, "Required environment variables:")
		fmt.Fprintln(os.Stderr, "  DISCORD_TOKEN          - Discord bot token")
		fmt.Fprintln(os.Stderr, "  DISCORD_APPLICATION_ID - Discord application ID")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Optional:")
		fmt.Fprintln(os.Stderr, "  DISCORD_GUILD_ID       - Guild for development command registration")
		fmt.Fprintln(os.Stderr, "  SHARD_COUNT            - Number of shards (0 = auto-detect)")
		fmt.Fprintln(os.Stderr, "  LOG_LEVEL              - debug, info, warn, error (default: info)")
		fmt.Fprintln(os.Stderr, "  DEFAULT_VOLUME         - Default volume 0-100 (default: 100)")
		fmt.Fprintln(os.Stderr, "  MAX_QUEUE_SIZE         - Max tracks per guild queue (default: 500)")
		fmt.Fprintln(os.Stderr, "  AUTO_LEAVE_TIMEOUT     - Idle auto-leave in seconds (default: 300)")
		fmt.Fprintln(os.Stderr, "  CATALOG_CLIENT_ID      - Music catalog API credential")
		fmt.Fprintln(os.Stderr, "  CATALOG_BASE_URL       - Override the catalog endpoint")
		fmt.Fprintln(os.Stderr, "  OPENAI_API_KEY         - Enables /chat")
		fmt.Fprintln(os.Stderr, "  XP_PER_MESSAGE_MIN/MAX, XP_COOLDOWN_SECONDS, DAILY_XP_BONUS")
		fmt.Fprintln(os.Stderr, "  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE")
		fmt.Fprintln(os.Stderr, "  REDIS_HOST, REDIS_PORT, REDIS_PASSWORD, REDIS_DB")
		os.Exit(1)
	}

	logger := bot.NewLogger(cfg.LogLevel)

	if cfg.IsDevelopment() {
		logger.Info("starting in development mode", "guild_id", cfg.GuildID)
	} else {
		logger.Info("starting in production mode")
	}

	b, err := bot.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if err := b.Start(); err != nil {
		logger.Error("failed to start bot", "error", err)
		os.Exit(1)
	}

	logger.Info("bot is running, press CTRL+C to exit")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	if err := b.Stop(); err != nil {
		logger.Error("failed to stop bot cleanly", "error", err)
	}
}
