package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/pflag"
)

const usage = `finlink admin CLI - operational commands for the aggregation service

Usage:
  admin <command> [options]

Commands:
  create-user        Register a user and optionally print a session token
  sync-accounts      Pull account lists from the provider for one or more users
  refresh-balances   Refresh balances of registered accounts for one or more users
  transactions       Print the merged recent transactions of a user
  list-accounts      Print every registered account

Examples:
  admin create-user --email=ana@example.com --issue-token
  admin sync-accounts --user-id=0b6f...,9a1c...
  admin sync-accounts --all --workers=8 --timeout=1h
  admin refresh-balances --all
  admin transactions --user-id=0b6f... --json
`

type command func(args []string) error

var commands = map[string]command{
	"create-user":      runCreateUser,
	"sync-accounts":    runSyncAccounts,
	"refresh-balances": runRefreshBalances,
	"transactions":     runTransactions,
	"list-accounts":    runListAccounts,
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	name := os.Args[1]
	switch name {
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	}

	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := cmd(os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("%s failed: %v", name, err)
	}
}

// printUsage writes the top-level help. usage carries its own trailing newline.
func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
}

// newFlagSet builds a flag set whose usage text names the command and its
// examples.
func newFlagSet(name string, examples ...string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Printf("Usage: admin %s [options]\n\nOptions:\n", name)
		fs.PrintDefaults()
		if len(examples) > 0 {
			fmt.Println("\nExamples:")
			for _, ex := range examples {
				fmt.Println("  " + ex)
			}
		}
	}
	return fs
}
