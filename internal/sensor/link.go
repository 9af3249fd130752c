package sensor

import "context"

// Handler receives callbacks from a sensor link. All callbacks are invoked
// from the link's own goroutine; implementations marshal onto their own
// control context.
type Handler interface {
	OnSample(Sample)
	OnConnected()
	OnDisconnected()
}

// Link is a source of sensor frames and connection events.
// Run blocks until the context is cancelled, reconnecting as needed.
type Link interface {
	Run(ctx context.Context) error
}
