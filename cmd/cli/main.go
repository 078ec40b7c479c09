// Command tt is a CLI client for the tasktracker HTTP API.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	u "github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// ---- token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "tasktracker")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tasktracker")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// tokenExpiry reads exp without verifying the signature; the server does that.
func tokenExpiry(tok string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(15 * time.Minute)
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

const usageText = `tt CLI
Usage:
  tt -addr URL <cmd> [args]

Commands:
  version
  register   -u <username> [-p <password>]         (prompts if -p omitted)
  login      -u <username> [-p <password>]         (saves token)
  tasks list
  tasks add  -title <title> [-desc <text>]
  tasks done -id <uuid>
  tasks undo -id <uuid>
  tasks rm   -id <uuid>
`

var errUsage = errors.New("usage")

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the server at -addr.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, nil)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, newCli func(base, token string) *client) error {
	gfs := flag.NewFlagSet("tt", flag.ContinueOnError)
	gfs.SetOutput(io.Discard)
	addr := gfs.String("addr", "http://localhost:3000", "server base URL")
	if err := gfs.Parse(args); err != nil || gfs.NArg() < 1 {
		return errUsage
	}
	if newCli == nil {
		newCli = func(base, token string) *client { return newClient(base, token, nil) }
	}
	rest := gfs.Args()[1:]

	switch gfs.Arg(0) {
	case "version":
		fmt.Fprintf(stdout, "tt %s (%s)\n", version, buildDate)
		return nil

	case "register", "login":
		fs := flag.NewFlagSet(gfs.Arg(0), flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		user := fs.String("u", "", "username")
		pass := fs.String("p", "", "password")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *user == "" {
			return errors.New("need -u")
		}
		if *pass == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			b, err := readPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			*pass = string(b)
		}
		cli := newCli(*addr, "")
		if gfs.Arg(0) == "register" {
			id, err := cli.register(ctx, *user, *pass)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, id)
			return nil
		}
		tok, err := cli.login(ctx, *user, *pass)
		if err != nil {
			return err
		}
		if err := saveToken(tok, tokenExpiry(tok)); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil

	case "tasks":
		if len(rest) < 1 {
			return errUsage
		}
		tok, err := loadToken()
		if err != nil {
			return err
		}
		return runTasks(ctx, newCli(*addr, tok), rest[0], rest[1:], stdout)

	default:
		return errUsage
	}
}

func runTasks(ctx context.Context, cli *client, cmd string, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("tasks "+cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	title := fs.String("title", "", "task title")
	desc := fs.String("desc", "", "task description")
	id := fs.String("id", "", "task id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	switch cmd {
	case "list":
		list, err := cli.listTasks(ctx)
		if err != nil {
			return err
		}
		type row struct {
			ID    string `json:"id"`
			Done  bool   `json:"done"`
			Title string `json:"title"`
		}
		rows := make([]row, 0, len(list))
		for _, t := range list {
			rows = append(rows, row{ID: t.ID.String(), Done: t.IsComplete, Title: t.Title})
		}
		printJSON(stdout, rows)
		return nil

	case "add":
		if *title == "" {
			return errors.New("need -title")
		}
		in := taskInput{Title: *title}
		if *desc != "" {
			in.Description = desc
		}
		t, err := cli.addTask(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, t.ID)
		return nil

	case "done", "undo", "rm":
		if _, err := u.FromString(*id); err != nil {
			return fmt.Errorf("bad -id: %w", err)
		}
		if cmd == "rm" {
			if err := cli.removeTask(ctx, *id); err != nil {
				return err
			}
		} else if _, err := cli.setComplete(ctx, *id, cmd == "done"); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil

	default:
		return errUsage
	}
}
