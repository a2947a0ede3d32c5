// Command token issues a docvault access token signed with the configured
// secret. It stands in for an external login service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/docvault/internal/flagx"
	"github.com/dmitrijs2005/docvault/internal/server/auth"
	"github.com/dmitrijs2005/docvault/internal/server/config"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run accepts -user and -role next to the server's own configuration
// flags (-s, -token-ttl, -c); each parser picks out the flags it owns.
func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	userID := fs.String("user", "", "user id placed in the token")
	role := fs.String("role", "", "optional role claim")
	if err := fs.Parse(flagx.FilterArgs(args, flagx.Names(fs))); err != nil {
		return err
	}
	if *userID == "" {
		return errors.New("-user is required")
	}

	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	if cfg.SecretKey == "" {
		return errors.New("secret key is not configured")
	}

	token, err := auth.GenerateToken(*userID, *role, []byte(cfg.SecretKey), cfg.TokenTTL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, token)
	return err
}
