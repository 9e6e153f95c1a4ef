// Command createsuperuser provisions a staff superuser account and can
// print a login token for it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/recipebook/recipebook/internal/auth"
	"github.com/recipebook/recipebook/internal/repository"
	"github.com/recipebook/recipebook/internal/service"
)

type output struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Token  string `json:"token,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "", "Superuser email (required)")
		password    = flag.String("password", os.Getenv("SUPERUSER_PASSWORD"), "Superuser password (defaults to $SUPERUSER_PASSWORD)")
		name        = flag.String("name", "", "Display name")
		issueToken  = flag.Bool("token", false, "Also issue a login token")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fail("DATABASE_URL is required")
	}
	if strings.TrimSpace(*email) == "" {
		fail("-email is required")
	}
	if *issueToken && *password == "" {
		fail("a password is required to issue a token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fail("connect database:", err)
	}
	defer repo.Close()

	users := service.NewUserService(repo, repo, auth.NewHasher(auth.DefaultParams), nil)

	user, err := users.CreateSuperuser(ctx, *email, *password, service.UserExtras{Name: *name})
	switch {
	case errors.Is(err, service.ErrDuplicateEmail):
		fail("a user with this email already exists")
	case err != nil:
		fail("create superuser:", err)
	}

	out := output{UserID: user.ID, Email: user.Email}
	if *issueToken {
		issued, err := users.IssueToken(ctx, user.Email, *password)
		if err != nil {
			fail("issue token:", err)
		}
		out.Token = issued.Token
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Printf("created superuser %s (id %d)\n", out.Email, out.UserID)
		if out.Token != "" {
			fmt.Println(out.Token)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fail("invalid format; use plain or json")
	}
}

func fail(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}
