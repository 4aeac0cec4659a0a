// Command tokengen signs a bearer token for a configured user, for local
// testing against the relay.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/dkeye/curriculum-relay/internal/auth"
	"github.com/dkeye/curriculum-relay/internal/config"
	"github.com/dkeye/curriculum-relay/internal/domain"
	"github.com/dkeye/curriculum-relay/internal/users"
)

func main() {
	user := pflag.Int64P("user", "u", 0, "user id (must exist in config users)")
	ttl := pflag.Duration("ttl", time.Hour, "token lifetime")
	pflag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	dir := users.NewDirectory(cfg.Users)
	u, err := dir.LookupUser(context.Background(), domain.UserID(*user))
	if err != nil {
		log.Fatal().Err(err).Int64("user", *user).Msg("unknown user")
	}

	authn, err := auth.New(cfg.Secret, dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build authenticator")
	}
	tok, err := authn.Issue(*u, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("sign token")
	}
	fmt.Println(tok)
}
