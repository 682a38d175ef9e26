// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"context"
)

// JobDispatcher defines the contract for a system that can accept and queue
// notification deliveries for asynchronous processing. This interface decouples the
// business event that created a notification from the delivery mechanism.
type JobDispatcher interface {
	// Dispatch accepts a notification id and queues it for processing.
	// It returns an error if the id cannot be queued, for example, if the
	// queue is full, providing a mechanism for backpressure.
	Dispatch(ctx context.Context, notificationID string) error
	// Stop drains in-flight work and releases the workers.
	Stop()
}

// Job represents a single, executable unit of work that can be processed by the
// application's job dispatcher.
type Job interface {
	// Run executes the job's logic for one notification id.
	Run(ctx context.Context, notificationID string) error
}

// Provider translates a delivery into one call to an external status service.
// Integrations that are not set up for the build return nil.
type Provider interface {
	Name() string
	Notify(ctx context.Context, delivery *Delivery) error
}

// URLBuilder computes the public page of a build.
type URLBuilder interface {
	BuildURL(ctx context.Context, build *Build) (string, error)
}

// CommentBuilder renders the pull request comment body for a commit.
type CommentBuilder interface {
	CommentBody(ctx context.Context, commit string) (string, error)
}
