// Command keygen derives the docvault master key from a passphrase with
// argon2id and prints the key and salt as hex.
package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/docvault/internal/common"
	"github.com/dmitrijs2005/docvault/internal/cryptox"
	"github.com/dmitrijs2005/docvault/internal/server/config"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errMismatch = errors.New("passphrases do not match")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout, prompt io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(prompt)
	saltHex := fs.String("salt", "", "hex salt to reuse; a random one is generated when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var salt []byte
	if *saltHex == "" {
		salt = common.GenerateRandByteArray(config.MinSaltSize)
	} else {
		var err error
		if salt, err = hex.DecodeString(*saltHex); err != nil {
			return fmt.Errorf("decode salt: %w", err)
		}
		if len(salt) < config.MinSaltSize {
			return fmt.Errorf("salt must be at least %d bytes", config.MinSaltSize)
		}
	}

	pass, err := ask(prompt, "Enter passphrase: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)
	if len(pass) == 0 {
		return errors.New("empty passphrase")
	}

	confirm, err := ask(prompt, "Repeat passphrase: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)
	if !bytes.Equal(pass, confirm) {
		return errMismatch
	}

	key := cryptox.DeriveKey(pass, salt)
	defer common.WipeByteArray(key)

	fmt.Fprintf(stdout, "DOCVAULT_ENCRYPTION_KEY=%s\n", hex.EncodeToString(key))
	fmt.Fprintf(stdout, "DOCVAULT_ENCRYPTION_SALT=%s\n", hex.EncodeToString(salt))
	return nil
}

func ask(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
