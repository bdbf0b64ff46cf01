package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. The real
// App satisfies it; tests substitute a stub.
type execIface interface {
	unlocked() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Unlock(ctx context.Context) error
	SetPassword(ctx context.Context) error
	Lock(ctx context.Context) error
	AddEntry(ctx context.Context) error
	ListEntries(ctx context.Context) error
	ShowEntry(ctx context.Context, id string) error
	EditEntry(ctx context.Context, id string) error
	DeleteEntry(ctx context.Context, id string) error
	TogglePin(ctx context.Context, id string) error
	Todo(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
}

const helpText = `Available commands:
  login / logout            sign in to / out of the account
  unlock                    load the encryption key from the master password
  setpassword               set up or rotate the master password
  lock                      drop the encryption key
  add                       add a journal entry
  list | l                  list journal entries
  show <id>                 show one entry
  edit <id>                 edit an entry
  del <id>                  delete an entry
  pin <id>                  toggle an entry's pin
  todo add|list|done|del    manage todos
  sync                      replay queued operations now
  status                    connectivity, pending queue, encryption state
  exit | quit               leave`

// runREPL reads commands line by line and dispatches them until EOF or
// exit. Handler errors are printed, never fatal: the loop stays up
// through offline stretches and bad input.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("jotflow %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			printlnFn(helpText)
		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "unlock":
			err = a.Unlock(ctx)
		case "setpassword":
			err = a.SetPassword(ctx)
		case "lock":
			err = a.Lock(ctx)
		case "add":
			err = a.AddEntry(ctx)
		case "l", "list":
			err = a.ListEntries(ctx)
		case "show", "edit", "del", "pin":
			if len(args) == 0 {
				printlnFn("Usage: " + cmd + " <id>")
				continue
			}
			switch cmd {
			case "show":
				err = a.ShowEntry(ctx, args[0])
			case "edit":
				err = a.EditEntry(ctx, args[0])
			case "del":
				err = a.DeleteEntry(ctx, args[0])
			case "pin":
				err = a.TogglePin(ctx, args[0])
			}
		case "todo":
			err = a.Todo(ctx, args)
		case "sync":
			err = a.Sync(ctx)
		case "status":
			err = a.Status(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
