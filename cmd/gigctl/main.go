package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/golang-jwt/jwt/v5"

	"gigchain/config"
	"gigchain/core/genesis"
	"gigchain/crypto"
)

const usage = `gigctl <command> [flags]

Commands:
  token             mint a bearer token for an identity
  keygen            create a key and print its identity
  identity          print the identity stored in a keystore file
  validate-genesis  check a bootstrap file
  default-config    print the default node configuration
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gigctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "token":
		return runToken(args[1:], out, time.Now)
	case "keygen":
		return runKeygen(args[1:], out)
	case "identity":
		return runIdentity(args[1:], out)
	case "validate-genesis":
		return runValidateGenesis(args[1:], out)
	case "default-config":
		return toml.NewEncoder(out).Encode(config.Default())
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runToken(args []string, out io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "Caller identity (bech32 or 0x hex)")
	secret := fs.String("secret", "", "HMAC secret (defaults to "+config.JWTSecretEnv+")")
	issuer := fs.String("issuer", "gigchain", "Token issuer")
	audience := fs.String("audience", "gigchain-api", "Token audience")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	caller, err := crypto.ParseIdentity(*subject)
	if err != nil {
		return fmt.Errorf("invalid -subject: %w", err)
	}
	key := strings.TrimSpace(*secret)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(config.JWTSecretEnv))
	}
	if key == "" {
		return fmt.Errorf("a secret is required (pass -secret or export %s)", config.JWTSecretEnv)
	}
	if *ttl <= 0 {
		return errors.New("-ttl must be positive")
	}

	issued := now()
	claims := jwt.RegisteredClaims{
		Subject:   crypto.FormatIdentity(caller),
		Issuer:    *issuer,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(issued.Add(*ttl)),
	}
	if *audience != "" {
		claims.Audience = jwt.ClaimStrings{*audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return err
	}
	fmt.Fprintln(out, signed)
	return nil
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "Write the key to an encrypted keystore file")
	passphrase := fs.String("passphrase", "", "Keystore passphrase")
	light := fs.Bool("light", false, "Use fast scrypt parameters (development keys only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if *keystorePath != "" {
		strength := crypto.StandardKeystore
		if *light {
			strength = crypto.LightKeystore
		}
		if err := crypto.SaveToKeystore(*keystorePath, key, *passphrase, strength); err != nil {
			return fmt.Errorf("save keystore: %w", err)
		}
	}
	fmt.Fprintln(out, crypto.FormatIdentity(key.Identity()))
	return nil
}

func runIdentity(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("identity", flag.ContinueOnError)
	keystorePath := fs.String("keystore", "", "Keystore file")
	passphrase := fs.String("passphrase", "", "Keystore passphrase")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*keystorePath, *passphrase)
	if err != nil {
		return err
	}
	id := key.Identity()
	fmt.Fprintf(out, "%s\n%s\n", crypto.FormatIdentity(id), id.Hex())
	return nil
}

func runValidateGenesis(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("validate-genesis", flag.ContinueOnError)
	path := fs.String("file", "", "Bootstrap file to check")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*path) == "" {
		return errors.New("-file is required")
	}
	spec, err := genesis.LoadSpec(*path)
	if err != nil {
		return err
	}
	ts := spec.GenesisTimestamp()
	fmt.Fprintf(out, "ok: genesis %s, %d roles, %d identities, %d balances\n",
		ts.UTC().Format(time.RFC3339), len(spec.Roles), len(spec.Identities), len(spec.Balances))
	return nil
}
