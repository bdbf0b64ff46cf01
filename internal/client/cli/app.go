// Package cli implements the interactive JotFlow client: a REPL over
// the record facades with master-password handling, connectivity
// status, and queue replay on reconnect.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/jotflow/jotflow/internal/client/config"
	"github.com/jotflow/jotflow/internal/client/gcal"
	"github.com/jotflow/jotflow/internal/client/keyring"
	"github.com/jotflow/jotflow/internal/client/models"
	"github.com/jotflow/jotflow/internal/client/profile"
	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/client/remote"
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/client/store"
	"github.com/jotflow/jotflow/internal/client/syncer"
	"github.com/jotflow/jotflow/internal/logging"

	_ "modernc.org/sqlite"
)

// App wires the client components together behind the REPL.
type App struct {
	config *config.Config
	log    logging.Logger
	reader *bufio.Reader
	out    io.Writer

	db       *sql.DB
	remote   *remote.Store
	keys     *keyring.Keyring
	profile  *profile.Manager
	entries  *store.Entries
	todos    *store.Todos
	widgets  *store.Widgets
	coord    *syncer.Coordinator
	calendar *gcal.Syncer
}

// NewApp builds the full client: local storage, remote store, queues,
// facades, and the replay coordinator.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}

	db, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	slots := storage.NewSQLiteSlots(db)
	rc := remote.NewStore(remote.Options{
		BaseURL:     cfg.RemoteBaseURL,
		RealtimeURL: cfg.RealtimeURL,
		APIKey:      cfg.APIKey,
		Logger:      log,
	})

	keys := keyring.New()
	coord := syncer.NewCoordinator(rc, cfg.OnlineCheckInterval, cfg.QueuePollInterval, log)
	online := coord.Online

	recordQueue := queue.New(storage.SlotSyncQueue, slots, log)
	calendarQueue := queue.New(storage.SlotCalendarQueue, slots, log)

	calendar := gcal.NewSyncer(gcal.NewEdgeCalendar(rc, log), calendarQueue, online, log)

	deps := store.Deps{
		Remote: rc,
		Queue:  recordQueue,
		Keys:   keys,
		Slots:  slots,
		Online: online,
		Logger: log,
	}
	entries := store.NewEntries(deps)
	todos := store.NewTodos(deps, calendar)
	widgets := store.NewWidgets(deps)

	coord.Register(syncer.NewQueueReplayer(recordQueue, rc, map[string]syncer.InsertConfirmer{
		models.CollectionEntries: entries,
		models.CollectionTodos:   todos,
		models.CollectionWidgets: widgets,
	}, log))
	coord.Register(calendar)

	return &App{
		config:   cfg,
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		db:       db,
		remote:   rc,
		keys:     keys,
		profile:  profile.NewManager(rc, slots, keys, online, log),
		entries:  entries,
		todos:    todos,
		widgets:  widgets,
		coord:    coord,
		calendar: calendar,
	}, nil
}

// Run starts the watchers and enters the REPL. It returns when the
// user exits or stdin closes.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.coord.Start(ctx)
	a.startRealtime(ctx)

	runREPL(ctx, a, a.status, bufio.NewScanner(os.Stdin))
}

// Close releases the client's resources.
func (a *App) Close() {
	a.keys.Clear()
	_ = a.remote.Close()
	_ = a.db.Close()
}

// startRealtime subscribes to the synchronized collections and feeds
// change notifications into the facades. Subscriptions reconnect on
// their own; a failed initial subscribe only costs live updates.
func (a *App) startRealtime(ctx context.Context) {
	subs := []struct {
		collection string
		apply      func(context.Context, remote.Event)
	}{
		{models.CollectionEntries, a.entries.ApplyEvent},
		{models.CollectionTodos, a.todos.ApplyEvent},
		{models.CollectionWidgets, a.widgets.ApplyEvent},
	}
	for _, sub := range subs {
		ch, err := a.remote.Subscribe(ctx, sub.collection)
		if err != nil {
			a.log.Warn(ctx, "realtime subscription failed", "collection", sub.collection, "error", err)
			continue
		}
		go func(apply func(context.Context, remote.Event), ch <-chan remote.Event) {
			for ev := range ch {
				apply(ctx, ev)
			}
		}(sub.apply, ch)
	}
}

func (a *App) unlocked() bool {
	return a.keys.Unlocked()
}
