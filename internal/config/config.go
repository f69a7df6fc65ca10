// Package config loads runtime configuration from the environment, with an
// optional .env file for local runs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIBase   = "https://upvote.biz"
	DefaultDataFile  = "bot_data.json"
	DefaultOrdersLog = "orders.jsonl"

	// Service 8 on the ordering panel targets comments up to 24 hours old.
	DefaultCommentServiceID = 8
	// Service 7 targets posts; used by the instant-downvote path when the
	// pasted link is a post rather than a comment.
	DefaultPostServiceID = 7
)

type Config struct {
	TelegramToken string
	ChatID        int64

	APIKey  string
	APIBase string

	// Optional proxy for thread fetches (the ordering API is reached directly).
	RedditProxy string

	DataFile    string
	DatabaseURL string

	WhitelistFile string
	OrdersLog     string

	CommentServiceID int
	PostServiceID    int
}

// Load reads .env (if present) and the process environment. Missing required
// values are not an error here; each binary validates what it needs.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		TelegramToken:    strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		APIKey:           strings.TrimSpace(os.Getenv("UPVOTE_API_KEY")),
		APIBase:          envOr("UPVOTE_API_BASE", DefaultAPIBase),
		RedditProxy:      strings.TrimSpace(os.Getenv("REDDIT_PROXY")),
		DataFile:         envOr("DATA_FILE", DefaultDataFile),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		WhitelistFile:    strings.TrimSpace(os.Getenv("WHITELIST_FILE")),
		OrdersLog:        envOr("ORDERS_LOG", DefaultOrdersLog),
		CommentServiceID: DefaultCommentServiceID,
		PostServiceID:    DefaultPostServiceID,
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.ChatID = id
	}
	if raw := strings.TrimSpace(os.Getenv("DOWNVOTE_SERVICE_ID")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DOWNVOTE_SERVICE_ID %q: %w", raw, err)
		}
		cfg.CommentServiceID = id
	}

	return cfg, nil
}

// ValidateBot checks the values the bot daemon cannot run without.
func (c Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN required")
	}
	if c.ChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID required")
	}
	return c.ValidateAPI()
}

// ValidateAPI checks the values any ordering-service call needs.
func (c Config) ValidateAPI() error {
	if c.APIKey == "" {
		return fmt.Errorf("UPVOTE_API_KEY required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
