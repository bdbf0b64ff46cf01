package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jotflow/jotflow/internal/client/models"
)

// AddEntry prompts for a new journal entry and stores it.
func (a *App) AddEntry(ctx context.Context) error {
	title, err := GetSimpleText(a.reader, "Title", a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Content", a.out)
	if err != nil {
		return err
	}
	tagsLine, err := GetSimpleText(a.reader, "Tags (comma-separated, optional)", a.out)
	if err != nil {
		return err
	}
	moodLine, err := GetSimpleText(a.reader, "Mood 1-5 (optional)", a.out)
	if err != nil {
		return err
	}

	e := models.Entry{Title: title, Content: content, Tags: splitTags(tagsLine)}
	if moodLine != "" {
		mood, err := strconv.Atoi(moodLine)
		if err != nil || mood < 1 || mood > 5 {
			return fmt.Errorf("mood must be a number from 1 to 5")
		}
		e.Mood = &mood
	}

	added, err := a.entries.Add(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added entry %s%s\n", added.ID, pendingSuffix(added.Pending))
	return nil
}

// ListEntries prints the working set, fetching first when online.
func (a *App) ListEntries(ctx context.Context) error {
	entries, err := a.entries.FetchAll(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No entries yet.")
		return nil
	}
	for _, e := range entries {
		pin := " "
		if e.Pinned {
			pin = "*"
		}
		fmt.Fprintf(a.out, "%s %s  %s  %s%s\n", pin, e.ID, e.Date, e.Title, pendingSuffix(e.Pending))
	}
	return nil
}

// ShowEntry prints one entry in full.
func (a *App) ShowEntry(ctx context.Context, id string) error {
	e, ok := a.entries.GetByID(id)
	if !ok {
		return fmt.Errorf("no entry %s", id)
	}

	fmt.Fprintf(a.out, "ID:      %s\n", e.ID)
	fmt.Fprintf(a.out, "Date:    %s\n", e.Date)
	fmt.Fprintf(a.out, "Pinned:  %v\n", e.Pinned)
	fmt.Fprintf(a.out, "Title:   %s\n", e.Title)
	fmt.Fprintf(a.out, "Content: %s\n", e.Content)
	if len(e.Tags) > 0 {
		fmt.Fprintf(a.out, "Tags:    %s\n", strings.Join(e.Tags, ", "))
	}
	if e.Mood != nil {
		fmt.Fprintf(a.out, "Mood:    %d\n", *e.Mood)
	}
	if !e.IsDecrypted && e.DecryptionError != "" {
		fmt.Fprintf(a.out, "(not decrypted: %s)\n", e.DecryptionError)
	}
	return nil
}

// EditEntry prompts for replacement title/content; empty input keeps
// the current value.
func (a *App) EditEntry(ctx context.Context, id string) error {
	e, ok := a.entries.GetByID(id)
	if !ok {
		return fmt.Errorf("no entry %s", id)
	}
	if !e.IsDecrypted {
		return fmt.Errorf("entry %s is not decrypted; unlock first", id)
	}

	title, err := GetSimpleText(a.reader, fmt.Sprintf("Title [%s]", e.Title), a.out)
	if err != nil {
		return err
	}
	content, err := GetMultiline(a.reader, "Content (empty to keep current)", a.out)
	if err != nil {
		return err
	}

	if title != "" {
		e.Title = title
	}
	if content != "" {
		e.Content = content
	}
	if err := a.entries.Update(ctx, e); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Updated.")
	return nil
}

// DeleteEntry removes an entry.
func (a *App) DeleteEntry(ctx context.Context, id string) error {
	if err := a.entries.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted.")
	return nil
}

// TogglePin flips an entry's pin.
func (a *App) TogglePin(ctx context.Context, id string) error {
	return a.entries.TogglePin(ctx, id)
}

func pendingSuffix(pending bool) string {
	if pending {
		return " (pending sync)"
	}
	return ""
}
