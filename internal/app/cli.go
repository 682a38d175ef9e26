package app

import (
	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/jobs"
	"github.com/sevigo/pixel-warden/internal/status"
	"github.com/sevigo/pixel-warden/internal/storage"
)

// Toolkit gives command line tools direct access to the services. Deliveries queued
// through its Notifier run in-process; call Dispatcher.Stop to wait for them.
type Toolkit struct {
	Store      storage.Store
	Statuses   *status.Aggregator
	Notifier   *jobs.Notifier
	Dispatcher core.JobDispatcher
}

func NewToolkit(store storage.Store, statuses *status.Aggregator, notifier *jobs.Notifier, dispatcher core.JobDispatcher) *Toolkit {
	return &Toolkit{Store: store, Statuses: statuses, Notifier: notifier, Dispatcher: dispatcher}
}
