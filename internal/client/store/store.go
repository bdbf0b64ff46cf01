// Package store implements the record store facades: typed, optimistic
// views over the hosted collections. Each facade keeps an in-memory
// working set, applies mutations locally first, talks to the remote
// store when connectivity allows, and falls back to the durable
// operation queue when it does not.
package store

import (
	"github.com/jotflow/jotflow/internal/client/keyring"
	"github.com/jotflow/jotflow/internal/client/queue"
	"github.com/jotflow/jotflow/internal/client/remote"
	"github.com/jotflow/jotflow/internal/client/storage"
	"github.com/jotflow/jotflow/internal/logging"
)

// Deps bundles the collaborators shared by every facade.
type Deps struct {
	Remote remote.Client
	Queue  *queue.Queue
	Keys   *keyring.Keyring
	Slots  storage.Slots
	// Online reports current connectivity; facades never probe the
	// network themselves.
	Online func() bool
	Logger logging.Logger
}

func (d *Deps) normalize() {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Online == nil {
		d.Online = func() bool { return false }
	}
}
