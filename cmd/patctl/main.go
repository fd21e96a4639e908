// Command patctl manages personal access tokens in the server's sqlite store.
//
// Usage:
//
//	patctl --store tokens.db --prefix app_pat_ issue --user u1 --email u1@example.com
//	patctl --store tokens.db --prefix app_pat_ list [--user u1]
//	patctl --store tokens.db --prefix app_pat_ revoke --id <token-id>
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/originate-group/common-mcp-server/pkg/patstore"
)

func main() {
	var (
		storePath = flag.String("store", "tokens.db", "Path of the sqlite PAT database")
		prefix    = flag.String("prefix", "", "Token prefix (must match the server's pat-prefix)")

		userID      = flag.String("user", "", "User ID the token belongs to")
		email       = flag.String("email", "", "User email")
		username    = flag.String("username", "", "Username")
		displayName = flag.String("name", "", "Display name")
		ttl         = flag.Duration("ttl", 0, "Token lifetime (default 720h, max 8760h)")
		tokenID     = flag.String("id", "", "Token ID to revoke")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
	}
	command := flag.Arg(0)

	if *prefix == "" {
		fatalf("--prefix is required")
	}

	store, err := patstore.Open(*storePath, *prefix)
	if err != nil {
		fatalf("failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	switch command {
	case "issue":
		if *userID == "" {
			fatalf("--user is required for issue")
		}
		token, err := store.Issue(ctx, *userID, *email, *username, *displayName, *ttl)
		if err != nil {
			fatalf("failed to issue token: %v", err)
		}
		fmt.Printf("Token ID:  %s\n", token.ID)
		fmt.Printf("Expires:   %s\n", token.ExpiresAt.Format(time.RFC3339))
		fmt.Printf("Token:     %s\n", token.Plaintext)
		fmt.Println("\nStore this token now. It cannot be recovered later.")

	case "list":
		tokens, err := store.List(ctx, *userID)
		if err != nil {
			fatalf("failed to list tokens: %v", err)
		}
		if len(tokens) == 0 {
			fmt.Println("No tokens.")
			return
		}
		for _, t := range tokens {
			status := "active"
			if t.RevokedAt != nil {
				status = "revoked"
			} else if time.Now().After(t.ExpiresAt) {
				status = "expired"
			}
			fmt.Printf("%s  %-10s  user=%s  expires=%s\n",
				t.ID, status, t.UserID, t.ExpiresAt.Format(time.RFC3339))
		}

	case "revoke":
		if *tokenID == "" {
			fatalf("--id is required for revoke")
		}
		if err := store.Revoke(ctx, *tokenID); err != nil {
			fatalf("failed to revoke token: %v", err)
		}
		fmt.Println("Token revoked.")

	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] issue|list|revoke\n\nFlags:\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(1)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
