package tgbot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/reddit"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/store"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/whitelist"
)

func helpText() string {
	return "Reddit Comment Downvoter\n\n" +
		"Commands:\n" +
		"/add <url> - Add post to monitor\n" +
		"/list - Show monitored posts\n" +
		"/remove - Remove a monitored post\n" +
		"/status - Show stats\n" +
		"/balance - Show service balance\n" +
		"/start_monitor - Start scanning\n" +
		"/stop_monitor - Stop scanning\n" +
		"/downvotes <n> - Set downvotes per comment\n" +
		"/interval <s> - Set scan interval\n" +
		"/downvote <url> - Instant downvote\n" +
		"/whitelist <user> - Add to whitelist\n" +
		"/unwhitelist <user> - Remove\n" +
		"/showwhitelist - Show whitelist\n\n" +
		"Or use the buttons below:"
}

func statusText(running bool, balance string, data store.Data, importedCount int) string {
	state := "Stopped"
	if running {
		state = "Running"
	}

	var sb strings.Builder
	sb.WriteString("=== Downvoter Status ===\n\n")
	fmt.Fprintf(&sb, "Scanner: %s\n", state)
	if balance != "" {
		fmt.Fprintf(&sb, "Balance: $%s\n", balance)
	}
	sb.WriteString("\n--- Config ---\n")
	fmt.Fprintf(&sb, "Posts monitored: %d\n", len(data.Posts))
	fmt.Fprintf(&sb, "Whitelisted: %d\n", importedCount)
	fmt.Fprintf(&sb, "Downvotes/comment: %d\n", data.Settings.DownvotesPerComment)
	fmt.Fprintf(&sb, "Scan interval: %ds\n\n", data.Settings.ScanIntervalSeconds)
	sb.WriteString("--- Stats ---\n")
	fmt.Fprintf(&sb, "Comments downvoted: %d\n", data.Stats.CommentsDownvoted)
	fmt.Fprintf(&sb, "Orders today: %d\n", data.Stats.OrdersToday)
	fmt.Fprintf(&sb, "Total orders: %d", data.Stats.TotalOrders)
	return sb.String()
}

const whitelistPreviewMax = 20

func whitelistText(imported map[string]struct{}, editable []string) string {
	total := len(whitelist.Union(imported, editable))

	var sb strings.Builder
	sb.WriteString("=== Whitelist ===\n\n")
	fmt.Fprintf(&sb, "Imported: %d users\n", len(imported))
	fmt.Fprintf(&sb, "Added via bot: %d users\n", len(editable))
	fmt.Fprintf(&sb, "Total: %d users\n", total)

	if len(editable) > 0 {
		sb.WriteString("\nBot-added users:\n")
		shown := editable
		if len(shown) > whitelistPreviewMax {
			shown = shown[:whitelistPreviewMax]
		}
		names := make([]string, 0, len(shown))
		for _, u := range shown {
			names = append(names, "u/"+u)
		}
		sb.WriteString(strings.Join(names, ", "))
		if extra := len(editable) - whitelistPreviewMax; extra > 0 {
			fmt.Fprintf(&sb, "\n... and %d more", extra)
		}
	}
	return sb.String()
}

// parseQuantity reads an operator-supplied order quantity, falling back to
// def on junk and clamping to the service minimum.
func parseQuantity(arg string, def int) int {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return def
	}
	if n < store.MinDownvotes {
		return store.MinDownvotes
	}
	return n
}

// postLabel is the short button caption for one monitored thread.
func postLabel(url string) string {
	return fmt.Sprintf("r/%s (%s)", reddit.Subreddit(url), reddit.PostID(url))
}

func homeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Add Post", "help_add"),
			tgbotapi.NewInlineKeyboardButtonData("List Posts", "list_posts"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Start Monitor", "start_mon"),
			tgbotapi.NewInlineKeyboardButtonData("Stop Monitor", "stop_mon"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Status", "status"),
			tgbotapi.NewInlineKeyboardButtonData("Whitelist", "show_whitelist"),
		),
	)
}

func statusKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Refresh", "status"),
			tgbotapi.NewInlineKeyboardButtonData("List Posts", "list_posts"),
		),
	)
}

func listKeyboard(posts []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(posts)+1)
	for i, post := range posts {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(postLabel(post), fmt.Sprintf("view_%d", i)),
			tgbotapi.NewInlineKeyboardButtonData("Remove", fmt.Sprintf("remove_%d", i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Remove All", "remove_all"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
