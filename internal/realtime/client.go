package realtime

// Client is one live connection as seen by the hub. It abstracts the
// underlying transport so coordinators only deal with connection ids.
type Client interface {
	// ID returns the opaque connection identifier assigned on upgrade.
	ID() string
	// UserID returns the authenticated subject of the connection, or "".
	UserID() string
	// Send queues ev for delivery without blocking. It reports false when the
	// connection is closed or its buffer is full.
	Send(ev Event) bool
	// Run starts the read and write pumps.
	Run()
	// Close stops delivery and releases the connection.
	Close()
}
