// Command probe checks whether the ordering service is reachable or sitting
// behind an active bot-mitigation challenge, and shows the evidence: status
// codes, provider headers, and how the response body classifies.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/config"
	"github.com/Rierra/Reddit-listening-for-vote-manip/internal/upvote"
)

func main() {
	log.SetFlags(0)

	var withAPI bool
	flag.BoolVar(&withAPI, "api", false, "Also probe the authenticated balance endpoint")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	client := &http.Client{Timeout: 30 * time.Second, Jar: jar}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	base := strings.TrimRight(cfg.APIBase, "/")
	fmt.Printf("probing %s\n\n", base)

	probe(ctx, client, "front page", base+"/")

	if !withAPI {
		return
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	params := url.Values{}
	params.Set("key", cfg.APIKey)
	params.Set("action", "balance")
	probe(ctx, client, "balance endpoint", base+"/api/v1?"+params.Encode())
}

func probe(ctx context.Context, client *http.Client, label, target string) {
	fmt.Printf("[%s] GET %s\n", label, redactKey(target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	req.Header.Set("User-Agent", upvote.DefaultUserAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("  transport error: %v\n\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256<<10))
	if err != nil {
		fmt.Printf("  read error: %v\n\n", err)
		return
	}

	fmt.Printf("  status: %d\n", resp.StatusCode)
	for _, h := range []string{"Server", "Content-Type", "Cf-Mitigated", "Cf-Ray"} {
		if v := resp.Header.Get(h); v != "" {
			fmt.Printf("  %s: %s\n", strings.ToLower(h), v)
		}
	}

	cls := upvote.Classify(resp.StatusCode, resp.Header, body)
	fmt.Printf("  classified: %s", cls.Kind)
	if cls.Note != "" {
		fmt.Printf(" (%s)", cls.Note)
	}
	fmt.Println()

	preview := strings.TrimSpace(string(body))
	if len(preview) > 200 {
		preview = preview[:200]
	}
	if preview != "" {
		fmt.Printf("  body: %q\n", preview)
	}
	fmt.Println()
}

// redactKey hides the credential when the probed URL carries one.
func redactKey(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	if q.Get("key") != "" {
		q.Set("key", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
