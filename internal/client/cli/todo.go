package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jotflow/jotflow/internal/client/models"
)

// Todo dispatches the todo subcommands: add, list, done, del.
func (a *App) Todo(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: todo add|list|done <id>|del <id>")
		return nil
	}

	switch args[0] {
	case "add":
		return a.addTodo(ctx, strings.Join(args[1:], " "))
	case "list":
		return a.listTodos(ctx)
	case "done":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: todo done <id>")
			return nil
		}
		return a.todos.Toggle(ctx, args[1])
	case "del":
		if len(args) < 2 {
			fmt.Fprintln(a.out, "Usage: todo del <id>")
			return nil
		}
		return a.todos.Delete(ctx, args[1])
	default:
		fmt.Fprintln(a.out, "Unknown todo subcommand:", args[0])
		return nil
	}
}

func (a *App) addTodo(ctx context.Context, text string) error {
	var err error
	if text == "" {
		text, err = GetSimpleText(a.reader, "Todo", a.out)
		if err != nil {
			return err
		}
	}
	date, err := GetSimpleText(a.reader, "Due date YYYY-MM-DD (optional)", a.out)
	if err != nil {
		return err
	}

	added, err := a.todos.Add(ctx, models.Todo{Text: text, Date: date})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added todo %s%s\n", added.ID, pendingSuffix(added.Pending))
	return nil
}

func (a *App) listTodos(ctx context.Context) error {
	todos, err := a.todos.FetchAll(ctx)
	if err != nil {
		return err
	}
	if len(todos) == 0 {
		fmt.Fprintln(a.out, "No todos.")
		return nil
	}
	for _, t := range todos {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		date := ""
		if t.Date != "" {
			date = "  due " + t.Date
		}
		fmt.Fprintf(a.out, "%s %s  %s%s%s\n", mark, t.ID, t.Text, date, pendingSuffix(t.Pending))
	}
	return nil
}
