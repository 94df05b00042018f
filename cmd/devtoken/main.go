// Command devtoken prints an access token for local testing against the
// floor API, signed with JWT_SECRET from the environment or .env.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/config"
	"github.com/iliyamo/billsplit-floor/internal/utils"
)

func main() {
	tenant := flag.String("tenant", "demo", "tenant_id claim")
	role := flag.String("role", "owner", "role claim: owner, manager or waiter")
	user := flag.String("user", "dev", "sub claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	tok, err := utils.NewAccessToken(cfg.JWTSecret, *user, *role, *tenant, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("signing token")
	}
	fmt.Fprintln(os.Stdout, tok.Token)
}
