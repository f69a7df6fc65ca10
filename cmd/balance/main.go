// Command balance prints the ordering-service account balance and,
// optionally, the service catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/config"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/upvote"
)

func main() {
	log.SetFlags(0)

	var showServices bool
	var allCategories bool
	flag.BoolVar(&showServices, "services", false, "Also list the Reddit service catalog")
	flag.BoolVar(&allCategories, "all", false, "With -services, list every category, not just Reddit")
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

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	bal, err := client.GetBalance(ctx)
	if err != nil {
		log.Fatalf("[fatal] balance: %v", err)
	}
	fmt.Printf("balance: %s %s\n", bal.Balance, bal.Currency)

	if !showServices {
		return
	}

	services, err := client.Services(ctx)
	if err != nil {
		log.Fatalf("[fatal] services: %v", err)
	}

	shown := 0
	for _, s := range services {
		if !allCategories && !strings.Contains(strings.ToLower(s.Category), "reddit") {
			continue
		}
		fmt.Printf("service %4s: %s (rate=%s min=%s max=%s)\n", s.ID, s.Name, s.Rate, s.Min, s.Max)
		shown++
	}
	fmt.Printf("%d service(s)\n", shown)
}
