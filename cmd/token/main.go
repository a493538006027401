// Command token issues an access token for a daybook user, signed with the
// server's secret. Accounts live outside daybook; this is how operators hand
// a user the token the client sends.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/daybook/internal/flagx"
	"github.com/dmitrijs2005/daybook/internal/server/auth"
	"github.com/dmitrijs2005/daybook/internal/server/config"
)

func main() {

	fs := flag.NewFlagSet("token", flag.ExitOnError)
	userID := fs.String("user", "", "user id to issue the token for")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-user", "--user"})); err != nil {
		log.Fatalf("%v", err)
	}
	if *userID == "" {
		log.Fatalf("-user is required")
	}

	cfg := config.LoadConfig()

	token, err := auth.GenerateToken(*userID, []byte(cfg.SecretKey), cfg.AccessTokenValidityDuration)
	if err != nil {
		log.Fatalf("token error: %v", err)
	}

	fmt.Println(token)
}
