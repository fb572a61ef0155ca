package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/nonyonah/hedwig/internal/middleware"
	"github.com/nonyonah/hedwig/internal/utils"
)

// generate-jwt mints a dashboard API token for a user id. Intended for
// local development and support tooling.
func main() {
	userID := flag.String("user", "", "user id to mint a token for")
	ttl := flag.Int("ttl", 24, "token lifetime in hours")
	flag.Parse()

	_ = godotenv.Load()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: generate-jwt -user <user-id> [-ttl <hours>]")
		os.Exit(2)
	}
	secret := utils.Env("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := middleware.IssueToken(secret, *userID, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
