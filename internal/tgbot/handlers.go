package tgbot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/reddit"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/store"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/upvote"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/whitelist"
)

func (b *Bot) cmdAdd(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.send(chatID, "Usage: /add <reddit_post_url>")
		return
	}
	url := args[0]
	if !reddit.ValidThreadURL(url) {
		b.send(chatID, "Error: Invalid Reddit post URL")
		return
	}

	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	if !data.AddPost(url) {
		b.send(chatID, "Warning: Post already being monitored")
		return
	}
	if !b.saveData(ctx, chatID, data) {
		return
	}

	// First post usually means the operator wants monitoring on.
	if err := b.cfg.Scanner.Start(); err == nil {
		b.send(chatID, fmt.Sprintf("Added post\nScanner started - monitoring %d post(s)", len(data.Posts)))
		return
	}
	b.send(chatID, fmt.Sprintf("Added post\nNow monitoring %d post(s)", len(data.Posts)))
}

func (b *Bot) cmdList(ctx context.Context, chatID int64) {
	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	if len(data.Posts) == 0 {
		b.send(chatID, "No posts being monitored\n\nUse /add <url> to add a post")
		return
	}
	b.sendMarkup(chatID,
		fmt.Sprintf("Monitoring %d post(s):\n\nClick Remove to stop monitoring a post:", len(data.Posts)),
		listKeyboard(data.Posts))
}

func (b *Bot) cmdStatus(ctx context.Context, chatID int64, balance string) {
	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	if data.ResetDailyIfNeeded(time.Now()) {
		if !b.saveData(ctx, chatID, data) {
			return
		}
	}
	b.sendMarkup(chatID, statusText(b.cfg.Scanner.Running(), balance, data, len(b.cfg.Imported)), statusKeyboard())
}

func (b *Bot) cmdBalance(ctx context.Context, chatID int64) {
	if b.cfg.Gateway == nil {
		b.send(chatID, "Error: ordering service not configured")
		return
	}
	bal, err := b.cfg.Gateway.GetBalance(ctx)
	if err != nil {
		b.send(chatID, "Error: "+upvote.Cause(err))
		return
	}
	text := "Balance: $" + bal.Balance.String()
	if bal.Currency != "" {
		text += " " + bal.Currency
	}
	b.send(chatID, text)
}

func (b *Bot) cmdStartMonitor(ctx context.Context, chatID int64) {
	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	if len(data.Posts) == 0 {
		b.send(chatID, "Error: No posts to monitor! Add some with /add first")
		return
	}
	if err := b.cfg.Scanner.Start(); err != nil {
		b.send(chatID, "Warning: Scanner already running")
		return
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Stop Monitor", "stop_mon")),
	)
	b.sendMarkup(chatID, fmt.Sprintf("Scanner started\n\nMonitoring %d post(s)\nScan interval: %ds",
		len(data.Posts), data.Settings.ScanIntervalSeconds), kb)
}

func (b *Bot) cmdStopMonitor(chatID int64) {
	if !b.cfg.Scanner.Running() {
		b.send(chatID, "Warning: Scanner not running")
		return
	}
	if err := b.cfg.Scanner.Stop(); err != nil {
		log.Printf("[warn] scanner stop: %v", err)
	}
	b.send(chatID, "Scanner stopped")
}

func (b *Bot) cmdDownvotes(ctx context.Context, chatID int64, args []string) {
	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	if len(args) == 0 {
		b.send(chatID, fmt.Sprintf("Current: %d downvotes per comment\n\nUsage: /downvotes <number>",
			data.Settings.DownvotesPerComment))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		b.send(chatID, "Error: Please enter a valid number")
		return
	}
	if n < store.MinDownvotes {
		b.send(chatID, fmt.Sprintf("Error: Minimum is %d (service limitation)", store.MinDownvotes))
		return
	}
	data.Settings.DownvotesPerComment = n
	if b.saveData(ctx, chatID, data) {
		b.send(chatID, fmt.Sprintf("Set to %d downvotes per comment", n))
	}
}

func (b *Bot) cmdInterval(ctx context.Context, chatID int64, args []string) {
	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	if len(args) == 0 {
		b.send(chatID, fmt.Sprintf("Current: %ds between scans\n\nUsage: /interval <seconds>",
			data.Settings.ScanIntervalSeconds))
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		b.send(chatID, "Error: Please enter a valid number")
		return
	}
	if n < store.MinScanInterval {
		b.send(chatID, fmt.Sprintf("Error: Minimum is %d seconds", store.MinScanInterval))
		return
	}
	data.Settings.ScanIntervalSeconds = n
	if b.saveData(ctx, chatID, data) {
		b.send(chatID, fmt.Sprintf("Set scan interval to %ds", n))
	}
}

func (b *Bot) cmdDownvote(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.send(chatID, "Usage: /downvote <reddit_url> [quantity]\n\n"+
			"Examples:\n"+
			"/downvote https://reddit.com/r/.../comments/abc123/\n"+
			"/downvote https://reddit.com/r/.../comments/abc123/ 10")
		return
	}
	url := args[0]
	if !reddit.ValidThreadURL(url) {
		b.send(chatID, "Error: Invalid Reddit URL")
		return
	}
	if b.cfg.Gateway == nil {
		b.send(chatID, "Error: ordering service not configured")
		return
	}

	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	quantity := data.Settings.DownvotesPerComment
	if len(args) > 1 {
		quantity = parseQuantity(args[1], quantity)
	}

	isComment := reddit.IsCommentURL(url)
	serviceID := b.cfg.PostServiceID
	targetType := "post"
	if isComment {
		serviceID = b.cfg.CommentServiceID
		targetType = "comment"
	}

	b.send(chatID, fmt.Sprintf("Sending %d downvotes to %s...", quantity, targetType))

	orderID, err := b.cfg.Gateway.AddOrder(ctx, serviceID, url, quantity)
	if err != nil {
		b.send(chatID, "Error: "+upvote.Cause(err))
		return
	}

	data, ok = b.loadData(ctx, chatID)
	if !ok {
		return
	}
	data.Stats.TotalOrders++
	data.Stats.OrdersToday++
	if isComment {
		data.Stats.CommentsDownvoted++
		// Ledger the comment so the scan loop never orders it a second time.
		if id := reddit.CommentID(url); id != "" {
			data.AppendProcessed(id)
		}
	}
	if !b.saveData(ctx, chatID, data) {
		return
	}
	b.send(chatID, fmt.Sprintf("Order placed\nOrder ID: %d\nType: %s\nQuantity: %d", orderID, targetType, quantity))
}

func (b *Bot) cmdWhitelist(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.send(chatID, "Usage: /whitelist <username>\n\nExample: /whitelist spammer123")
		return
	}
	name := strings.ToLower(strings.TrimPrefix(args[0], "u/"))

	if _, ok := b.cfg.Imported[name]; ok {
		b.send(chatID, fmt.Sprintf("u/%s is already in the imported whitelist", name))
		return
	}

	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	if !data.AddWhitelist(name) {
		b.send(chatID, fmt.Sprintf("u/%s is already whitelisted", name))
		return
	}
	if !b.saveData(ctx, chatID, data) {
		return
	}
	total := len(whitelist.Union(b.cfg.Imported, data.Whitelist))
	b.send(chatID, fmt.Sprintf("Added u/%s to whitelist\nTotal whitelisted: %d", name, total))
}

func (b *Bot) cmdUnwhitelist(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		b.send(chatID, "Usage: /unwhitelist <username>")
		return
	}
	name := strings.ToLower(strings.TrimPrefix(args[0], "u/"))

	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	if data.RemoveWhitelist(name) {
		if b.saveData(ctx, chatID, data) {
			b.send(chatID, fmt.Sprintf("Removed u/%s from whitelist", name))
		}
		return
	}
	if _, imported := b.cfg.Imported[name]; imported {
		b.send(chatID, fmt.Sprintf("u/%s comes from the imported file - edit that file to unwhitelist", name))
		return
	}
	b.send(chatID, fmt.Sprintf("u/%s not found in whitelist", name))
}

func (b *Bot) cmdShowWhitelist(ctx context.Context, chatID int64) {
	data, ok := b.loadData(ctx, chatID)
	if !ok {
		return
	}
	b.send(chatID, whitelistText(b.cfg.Imported, data.Whitelist))
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		log.Printf("[warn] telegram callback ack: %v", err)
	}

	chatID := q.Message.Chat.ID
	messageID := q.Message.MessageID

	switch data := q.Data; {
	case data == "status":
		b.callbackStatus(ctx, chatID, messageID)
	case data == "list_posts":
		b.callbackList(ctx, chatID, messageID)
	case data == "remove_all":
		b.callbackRemoveAll(ctx, chatID, messageID)
	case strings.HasPrefix(data, "remove_"):
		b.callbackRemove(ctx, chatID, messageID, strings.TrimPrefix(data, "remove_"))
	case strings.HasPrefix(data, "view_"):
		b.callbackView(ctx, chatID, messageID, strings.TrimPrefix(data, "view_"))
	case data == "start_mon":
		b.callbackStartMonitor(ctx, chatID, messageID)
	case data == "stop_mon":
		b.callbackStopMonitor(chatID, messageID)
	case data == "show_whitelist":
		b.callbackShowWhitelist(ctx, chatID, messageID)
	case data == "help_add":
		b.edit(chatID, messageID, "To add a post to monitor:\n\n"+
			"1. Copy the Reddit post URL\n"+
			"2. Send: /add <url>\n\n"+
			"Example:\n"+
			"/add https://www.reddit.com/r/example/comments/abc123/post_title/")
	}
}

func (b *Bot) callbackStatus(ctx context.Context, chatID int64, messageID int) {
	data, err := b.cfg.Store.Load(ctx)
	if err != nil {
		log.Printf("[warn] load state: %v", err)
		b.edit(chatID, messageID, "Error: could not load bot state")
		return
	}
	data.Normalize()
	if data.ResetDailyIfNeeded(time.Now()) {
		if err := b.cfg.Store.Save(ctx, data); err != nil {
			log.Printf("[warn] save state: %v", err)
		}
	}

	// The refresh button also pulls the current service balance.
	balance := ""
	if b.cfg.Gateway != nil {
		if bal, err := b.cfg.Gateway.GetBalance(ctx); err == nil {
			balance = bal.Balance.String()
		} else {
			log.Printf("[warn] balance: %v", err)
			balance = "unavailable"
		}
	}

	b.editMarkup(chatID, messageID, statusText(b.cfg.Scanner.Running(), balance, data, len(b.cfg.Imported)), statusKeyboard())
}

func (b *Bot) callbackList(ctx context.Context, chatID int64, messageID int) {
	data, err := b.cfg.Store.Load(ctx)
	if err != nil {
		log.Printf("[warn] load state: %v", err)
		return
	}
	data.Normalize()
	if len(data.Posts) == 0 {
		b.edit(chatID, messageID, "No posts being monitored\n\nUse /add <url> to add a post")
		return
	}
	b.editMarkup(chatID, messageID,
		fmt.Sprintf("Monitoring %d post(s):\n\nClick Remove to stop monitoring:", len(data.Posts)),
		listKeyboard(data.Posts))
}

func (b *Bot) callbackRemoveAll(ctx context.Context, chatID int64, messageID int) {
	data, err := b.cfg.Store.Load(ctx)
	if err != nil {
		log.Printf("[warn] load state: %v", err)
		return
	}
	data.Normalize()
	count := len(data.Posts)
	data.Posts = []string{}
	if err := b.cfg.Store.Save(ctx, data); err != nil {
		log.Printf("[warn] save state: %v", err)
		return
	}
	b.edit(chatID, messageID, fmt.Sprintf("Removed all %d posts from monitoring", count))
}

func (b *Bot) callbackRemove(ctx context.Context, chatID int64, messageID int, indexStr string) {
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return
	}
	data, err := b.cfg.Store.Load(ctx)
	if err != nil {
		log.Printf("[warn] load state: %v", err)
		return
	}
	data.Normalize()
	if _, ok := data.RemovePost(index); !ok {
		b.edit(chatID, messageID, "Error: Post not found")
		return
	}
	if err := b.cfg.Store.Save(ctx, data); err != nil {
		log.Printf("[warn] save state: %v", err)
		return
	}
	b.edit(chatID, messageID, fmt.Sprintf(
		"Removed post from monitoring\n\nRemaining: %d post(s)\n\nUse /list to see current posts", len(data.Posts)))
}

func (b *Bot) callbackView(ctx context.Context, chatID int64, messageID int, indexStr string) {
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return
	}
	data, err := b.cfg.Store.Load(ctx)
	if err != nil {
		log.Printf("[warn] load state: %v", err)
		return
	}
	data.Normalize()
	if index < 0 || index >= len(data.Posts) {
		b.edit(chatID, messageID, "Error: Post not found")
		return
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Remove This Post", "remove_"+indexStr)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Back to List", "list_posts")),
	)
	b.editMarkup(chatID, messageID, "Post URL:\n"+data.Posts[index], kb)
}

func (b *Bot) callbackStartMonitor(ctx context.Context, chatID int64, messageID int) {
	data, err := b.cfg.Store.Load(ctx)
	if err != nil {
		log.Printf("[warn] load state: %v", err)
		return
	}
	data.Normalize()
	if len(data.Posts) == 0 {
		b.edit(chatID, messageID, "Error: No posts to monitor! Add some with /add first")
		return
	}
	if err := b.cfg.Scanner.Start(); err != nil {
		b.edit(chatID, messageID, "Warning: Scanner already running")
		return
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Stop Monitor", "stop_mon")),
	)
	b.editMarkup(chatID, messageID, fmt.Sprintf("Scanner started\n\nMonitoring %d post(s)", len(data.Posts)), kb)
}

func (b *Bot) callbackStopMonitor(chatID int64, messageID int) {
	if !b.cfg.Scanner.Running() {
		b.edit(chatID, messageID, "Scanner was not running")
		return
	}
	if err := b.cfg.Scanner.Stop(); err != nil {
		log.Printf("[warn] scanner stop: %v", err)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Start Monitor", "start_mon")),
	)
	b.editMarkup(chatID, messageID, "Scanner stopped", kb)
}

func (b *Bot) callbackShowWhitelist(ctx context.Context, chatID int64, messageID int) {
	data, err := b.cfg.Store.Load(ctx)
	if err != nil {
		log.Printf("[warn] load state: %v", err)
		return
	}
	data.Normalize()
	b.edit(chatID, messageID, whitelistText(b.cfg.Imported, data.Whitelist))
}
