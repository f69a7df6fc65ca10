// Command order places a one-shot downvote order against a Reddit URL,
// without going through the Telegram bot. It can also look up the status of
// earlier orders.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/config"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/reddit"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/upvote"
)

func main() {
	log.SetFlags(0)

	var link string
	var quantity int
	var serviceID int
	var statusID int64
	flag.StringVar(&link, "link", "", "Reddit post or comment URL to order against")
	flag.IntVar(&quantity, "quantity", 0, "Number of downvotes (floored to the service minimum)")
	flag.IntVar(&serviceID, "service", 0, "Catalog service id (default: pick by link type)")
	flag.Int64Var(&statusID, "status", 0, "Look up an existing order id instead of placing one")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	client, err := upvote.NewClient(cfg.APIBase, cfg.APIKey)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if statusID != 0 {
		printStatus(ctx, client, statusID)
		return
	}

	if strings.TrimSpace(link) == "" {
		log.Fatalf("[fatal] -link required")
	}
	if !reddit.ValidThreadURL(link) {
		log.Fatalf("[fatal] not a Reddit post/comment URL: %s", link)
	}
	if quantity <= 0 {
		log.Fatalf("[fatal] -quantity required")
	}

	if serviceID == 0 {
		serviceID = pickService(ctx, client, cfg, link)
	}

	bal, err := client.GetBalance(ctx)
	if err != nil {
		log.Printf("[warn] balance: %v", err)
	} else {
		fmt.Printf("balance: %s %s\n", bal.Balance, bal.Currency)
	}

	fmt.Printf("placing: service=%d quantity=%d link=%s\n", serviceID, quantity, link)
	orderID, err := client.AddOrder(ctx, serviceID, link, quantity)
	if err != nil {
		log.Fatalf("[fatal] order: %v", err)
	}
	fmt.Printf("order: %d\n", orderID)

	printStatus(ctx, client, orderID)
}

// pickService chooses a catalog id for the link: the configured comment
// service for comment URLs, otherwise a post-downvote service found in the
// catalog, otherwise the configured post default.
func pickService(ctx context.Context, client *upvote.Client, cfg config.Config, link string) int {
	if reddit.IsCommentURL(link) {
		return cfg.CommentServiceID
	}

	services, err := client.Services(ctx)
	if err != nil {
		log.Printf("[warn] services: %v", err)
		return cfg.PostServiceID
	}
	for _, s := range services {
		name := strings.ToUpper(s.Name)
		if strings.Contains(name, "POST") && strings.Contains(name, "DOWNVOTE") {
			if id := s.ID.Int64(); id != 0 {
				fmt.Printf("using catalog service %d: %s\n", id, s.Name)
				return int(id)
			}
		}
	}
	return cfg.PostServiceID
}

func printStatus(ctx context.Context, client *upvote.Client, orderID int64) {
	st, err := client.GetOrderStatus(ctx, orderID)
	if err != nil {
		log.Fatalf("[fatal] status %d: %v", orderID, err)
	}
	fmt.Printf("status %d: %s (charge=%s start=%s remains=%s)\n",
		orderID, st.Status, st.Charge, st.StartCount, st.Remains)
}
