// Command devtoken mints a session token for local development, signed with
// SESSION_SECRET, so the API can be called without the identity provider.
//
//	go run ./cmd/devtoken -user alice -ttl 24h
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/iliyamo/aether/internal/utils"
)

func main() {
	user := flag.String("user", "dev-user", "user id placed in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})

	tok, exp, err := utils.NewSessionToken(os.Getenv("SESSION_SECRET"), *user, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("mint token")
	}
	log.Info().Str("user", *user).Time("expires", exp).Msg("token minted")
	fmt.Println(tok)
}
