// Command authctl inspects and manages the locally persisted auth session.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/nrudenko/authcore/authz"
	"github.com/nrudenko/authcore/claims"
	"github.com/nrudenko/authcore/client"
	"github.com/nrudenko/authcore/errs"
	"github.com/nrudenko/authcore/migrate"
	"github.com/nrudenko/authcore/model"
	"github.com/nrudenko/authcore/refresh"
	"github.com/nrudenko/authcore/store"
	"github.com/nrudenko/authcore/store/filestore"
	"github.com/nrudenko/authcore/store/postgres"
	"github.com/nrudenko/authcore/store/sqlitestore"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "authcore")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "authcore")
}

func usage() {
	fmt.Fprintf(os.Stderr, `authctl - manage the local auth session

usage: authctl [flags] <command> [args]

commands:
  version                  print version
  login                    install a token set (-access -id -refresh -expires)
  status                   print the current auth state
  token                    print a valid access token, refreshing if due
  whoami                   print the identity decoded from the ID token
  check                    evaluate -role or -perm against the session
  logout                   clear the session
  migrate                  apply postgres migrations (-dsn)

flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

// openStore picks the persistence backend from flags.
func openStore(ctx context.Context, backend, path, dsn, profile, passphrase string) (store.TokenStore, func(), error) {
	switch backend {
	case "file":
		if passphrase != "" {
			return filestore.NewSealed(path, []byte(passphrase)), func() {}, nil
		}
		return filestore.New(path), func() {}, nil
	case "sqlite":
		s, err := sqlitestore.Open(path, profile)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "postgres":
		db, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewTokenStore(db, profile), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

func main() {
	// global flags
	backend := flag.String("store", "file", "token store backend: file, sqlite or postgres")
	path := flag.String("path", filepath.Join(cfgDir(), "tokens.json"), "token file or sqlite database path")
	dsn := flag.String("dsn", os.Getenv("AUTHCORE_DSN"), "postgres DSN")
	profile := flag.String("profile", "default", "session profile")
	tokenURL := flag.String("token-url", os.Getenv("AUTHCORE_TOKEN_URL"), "OAuth2 token endpoint")
	clientID := flag.String("client-id", os.Getenv("AUTHCORE_CLIENT_ID"), "OAuth2 client id")
	clientSecret := flag.String("client-secret", os.Getenv("AUTHCORE_CLIENT_SECRET"), "OAuth2 client secret")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if cmd == "version" {
		fmt.Printf("authctl %s (%s)\n", version, buildDate)
		return
	}
	if cmd == "migrate" {
		if *dsn == "" {
			fail(fmt.Errorf("migrate needs -dsn"))
		}
		if err := migrate.Up(ctx, *dsn); err != nil {
			fail(err)
		}
		fmt.Println("migrations applied")
		return
	}

	log := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fail(err)
		}
		log = l
	}

	st, closeStore, err := openStore(ctx, *backend, *path, *dsn, *profile, os.Getenv("AUTHCORE_PASSPHRASE"))
	if err != nil {
		fail(err)
	}
	defer closeStore()

	c, err := client.New(ctx, client.Config{
		Store: st,
		Refresh: refresh.OAuth2(refresh.OAuth2Config{
			TokenURL:     *tokenURL,
			ClientID:     *clientID,
			ClientSecret: *clientSecret,
		}),
		Decode: claims.Decode,
		Logger: log,
	})
	if err != nil {
		fail(err)
	}
	defer c.Close()

	switch cmd {

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		access := fs.String("access", "", "access token")
		id := fs.String("id", "", "ID token")
		rt := fs.String("refresh", "", "refresh token")
		expires := fs.Int64("expires", 3600, "seconds until expiry")
		_ = fs.Parse(flag.Args()[1:])
		if *access == "" {
			fmt.Fprintln(os.Stderr, "need -access")
			os.Exit(1)
		}
		err := c.SignIn(ctx, model.AuthTokens{
			AccessToken:  *access,
			IDToken:      *id,
			RefreshToken: *rt,
			ExpiresIn:    *expires,
		})
		if err != nil {
			fail(err)
		}
		fmt.Println("signed in")

	case "status":
		s := c.CurrentAuthState()
		fmt.Println(s.Status)
		if s.Tokens != nil {
			fmt.Println("expires at:", s.Tokens.ExpiresAt().Format(time.RFC3339))
		}

	case "token":
		t, err := c.GetTokens(ctx)
		if err != nil {
			fail(err)
		}
		if t == nil {
			fail(fmt.Errorf("%w (login required)", errs.ErrNoSession))
		}
		fmt.Println(t.AccessToken)

	case "whoami":
		s := c.CurrentAuthState()
		if s.Status == model.StatusUnauthenticated {
			fail(fmt.Errorf("%w (login required)", errs.ErrNoSession))
		}
		if s.User.Email != "" {
			fmt.Println("email:", s.User.Email)
		}
		fmt.Println("id:", s.User.ID)
		for _, r := range s.User.Roles {
			fmt.Println("role:", r)
		}

	case "check":
		fs := flag.NewFlagSet("check", flag.ExitOnError)
		role := fs.String("role", "", "role to check")
		perm := fs.String("perm", "", "permission to check")
		_ = fs.Parse(flag.Args()[1:])
		switch {
		case *role != "":
			r, err := model.ParseRole(*role)
			if err != nil {
				fail(err)
			}
			ok, err := c.HasRole(ctx, r)
			if err != nil {
				fail(err)
			}
			fmt.Println(ok)
		case *perm != "":
			ok, err := c.HasPermission(ctx, authz.Permission(*perm))
			if err != nil {
				fail(err)
			}
			fmt.Println(ok)
		default:
			fmt.Fprintln(os.Stderr, "need -role or -perm")
			os.Exit(1)
		}

	case "logout":
		if err := c.SignOut(ctx); err != nil {
			fail(err)
		}
		fmt.Println("signed out")

	default:
		usage()
	}
}
