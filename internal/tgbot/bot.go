// Package tgbot is the Telegram command surface for operating the monitor:
// thread list edits, whitelist edits, settings, scanner control, and instant
// orders. It owns the notification consumer that drains the scan loop's
// outbound queue.
package tgbot

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/store"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/upvote"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/watch"
)

// Gateway is the slice of the ordering client the bot drives directly.
type Gateway interface {
	GetBalance(ctx context.Context) (upvote.Balance, error)
	AddOrder(ctx context.Context, serviceID int, link string, quantity int) (int64, error)
}

// Config wires a Bot to its collaborators.
type Config struct {
	Token  string
	ChatID int64

	Store   store.Store
	Scanner *watch.Scanner
	Gateway Gateway
	Queue   *watch.Queue

	// Imported holds trusted author names from the read-only import,
	// lowercased.
	Imported map[string]struct{}

	CommentServiceID int
	PostServiceID    int
}

// Bot serves operator commands over Telegram.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg Config
}

// New authenticates against the Telegram API and returns a Bot.
func New(cfg Config) (*Bot, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("tgbot: store required")
	}
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("tgbot: scanner required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Bot{api: api, cfg: cfg}, nil
}

// Run polls for updates until ctx is cancelled. It also starts the single
// consumer that performs the actual notification sends.
func (b *Bot) Run(ctx context.Context) error {
	log.Printf("[info] telegram bot authorized as @%s", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	go b.drainNotifications(ctx)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) drainNotifications(ctx context.Context) {
	if b.cfg.Queue == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-b.cfg.Queue.Chan():
			chatID := n.ChatID
			if chatID == 0 {
				chatID = b.cfg.ChatID
			}
			if _, err := b.api.Send(tgbotapi.NewMessage(chatID, n.Text)); err != nil {
				log.Printf("[warn] telegram notify: %v", err)
			}
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.Message == nil || !b.allowed(q.Message.Chat.ID) {
			return
		}
		b.handleCallback(ctx, q)
	case update.Message != nil && update.Message.IsCommand():
		if !b.allowed(update.Message.Chat.ID) {
			return
		}
		b.handleCommand(ctx, update.Message)
	}
}

// allowed gates the bot to the configured operator chat. An unset chat id
// leaves the bot open.
func (b *Bot) allowed(chatID int64) bool {
	return b.cfg.ChatID == 0 || chatID == b.cfg.ChatID
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		b.sendMarkup(chatID, helpText(), homeKeyboard())
	case "add":
		b.cmdAdd(ctx, chatID, args)
	case "list", "remove":
		b.cmdList(ctx, chatID)
	case "status":
		b.cmdStatus(ctx, chatID, "")
	case "balance":
		b.cmdBalance(ctx, chatID)
	case "start_monitor":
		b.cmdStartMonitor(ctx, chatID)
	case "stop_monitor":
		b.cmdStopMonitor(chatID)
	case "downvotes":
		b.cmdDownvotes(ctx, chatID, args)
	case "interval":
		b.cmdInterval(ctx, chatID, args)
	case "downvote", "dv":
		b.cmdDownvote(ctx, chatID, args)
	case "whitelist":
		b.cmdWhitelist(ctx, chatID, args)
	case "unwhitelist":
		b.cmdUnwhitelist(ctx, chatID, args)
	case "showwhitelist":
		b.cmdShowWhitelist(ctx, chatID)
	default:
		b.send(chatID, "Unknown command. Use /help to see what I understand.")
	}
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("[warn] telegram send: %v", err)
	}
}

func (b *Bot) sendMarkup(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[warn] telegram send: %v", err)
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		log.Printf("[warn] telegram edit: %v", err)
	}
}

func (b *Bot) editMarkup(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	if _, err := b.api.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)); err != nil {
		log.Printf("[warn] telegram edit: %v", err)
	}
}

// loadData reads a fresh state snapshot, reporting failures to the operator.
func (b *Bot) loadData(ctx context.Context, chatID int64) (store.Data, bool) {
	data, err := b.cfg.Store.Load(ctx)
	if err != nil {
		log.Printf("[warn] load state: %v", err)
		b.send(chatID, "Error: could not load bot state")
		return store.Data{}, false
	}
	data.Normalize()
	return data, true
}

func (b *Bot) saveData(ctx context.Context, chatID int64, data store.Data) bool {
	if err := b.cfg.Store.Save(ctx, data); err != nil {
		log.Printf("[warn] save state: %v", err)
		b.send(chatID, "Error: could not save bot state")
		return false
	}
	return true
}
