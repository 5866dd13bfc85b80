package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/emotion"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
	"github.com/LucadeVeintemilla/emotionTracking/core/student"
	"github.com/LucadeVeintemilla/emotionTracking/services/backend"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	out        io.Writer
	openDB     func() (*sqlx.DB, error)
	newSource  func() (live.FrameSource, error)
	prep       live.Preprocessor
	backend    *backend.Client
	studentSvc *student.Service
	emotionSvc *emotion.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a database migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  stats -session ID - print the emotion summary of a session")
	fmt.Fprintln(cli.out, "  snapshot -out FILE - capture and preprocess one frame")
	fmt.Fprintln(cli.out, "  student -q ID|NAME - look a student up in the directory")
	fmt.Fprintln(cli.out, "  login -email EMAIL - get a backend token (the password is prompted next)")
	fmt.Fprintln(cli.out, "  token -id ID [-username NAME] [-email EMAIL] [-ttl DURATION] - issue an API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	statsCmd := flag.NewFlagSet("stats", flag.ContinueOnError)
	statsSession := statsCmd.String("session", "", "The session id.")

	snapshotCmd := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	snapshotOut := snapshotCmd.String("out", "snapshot.jpg", "The file the preprocessed frame is written to.")

	studentCmd := flag.NewFlagSet("student", flag.ContinueOnError)
	studentQuery := studentCmd.String("q", "", "The student id or name.")

	loginCmd := flag.NewFlagSet("login", flag.ContinueOnError)
	loginEmail := loginCmd.String("email", "", "The instructor's email. The password will be prompted next.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenID := tokenCmd.String("id", "", "The instructor id.")
	tokenUsername := tokenCmd.String("username", "", "The instructor's username.")
	tokenEmail := tokenCmd.String("email", "", "The instructor's email.")
	tokenTTL := tokenCmd.Duration("ttl", 24*time.Hour, "How long the token is valid.")

	for _, fs := range []*flag.FlagSet{statsCmd, snapshotCmd, studentCmd, loginCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "stats":
		if err := statsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *statsSession == "" {
			statsCmd.Usage()
			return errHelp
		}
		return cli.stats(*statsSession)
	case "snapshot":
		if err := snapshotCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.snapshot(*snapshotOut)
	case "student":
		if err := studentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *studentQuery == "" {
			studentCmd.Usage()
			return errHelp
		}
		return cli.lookupStudent(*studentQuery)
	case "login":
		if err := loginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(*loginEmail, string(pwd))
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenID == "" || *tokenTTL <= 0 {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(core.Person{ID: *tokenID, Username: *tokenUsername, Email: *tokenEmail}, *tokenTTL)
	default:
		cli.printUsage()
		return errHelp
	}
}
