// Command downvotebot runs the monitoring pipeline and its Telegram control
// surface: it watches the configured Reddit threads for new comments, orders
// downvotes against the eligible ones, and reports every outcome to the
// operator chat.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/config"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/reddit"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/store"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/tgbot"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/upvote"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/watch"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/whitelist"
)

func main() {
	log.SetFlags(log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	defer st.Close()

	imported, err := whitelist.Load(cfg.WhitelistFile)
	if err != nil {
		log.Fatalf("[fatal] whitelist %s: %v", cfg.WhitelistFile, err)
	}
	if len(imported) > 0 {
		log.Printf("[info] imported %d trusted authors from %s", len(imported), cfg.WhitelistFile)
	}

	fetcher, err := reddit.NewClient(cfg.RedditProxy)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	defer fetcher.Close()

	gateway, err := upvote.NewClient(cfg.APIBase, cfg.APIKey)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	defer gateway.Close()

	orders := watch.NewOrderLog(cfg.OrdersLog)
	defer func() {
		if err := orders.Close(); err != nil {
			log.Printf("[warn] close order log: %v", err)
		}
	}()

	queue := watch.NewQueue(64)

	scanner, err := watch.New(watch.Config{
		Store:     st,
		Fetcher:   fetcher,
		Gateway:   gateway,
		Queue:     queue,
		ChatID:    cfg.ChatID,
		ServiceID: cfg.CommentServiceID,
		Imported:  imported,
		Orders:    orders,
	})
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	bot, err := tgbot.New(tgbot.Config{
		Token:            cfg.TelegramToken,
		ChatID:           cfg.ChatID,
		Store:            st,
		Scanner:          scanner,
		Gateway:          gateway,
		Queue:            queue,
		Imported:         imported,
		CommentServiceID: cfg.CommentServiceID,
		PostServiceID:    cfg.PostServiceID,
	})
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	log.Printf("[info] downvote bot up (state: %s)", stateLocation(cfg))
	if err := bot.Run(ctx); err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	if err := scanner.Stop(); err != nil {
		log.Printf("[warn] %v", err)
	}
	log.Printf("[info] shut down cleanly")
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		return store.NewPostgres(ctx, cfg.DatabaseURL)
	}
	return store.NewFile(cfg.DataFile)
}

func stateLocation(cfg config.Config) string {
	if cfg.DatabaseURL != "" {
		return "postgres"
	}
	return cfg.DataFile
}
