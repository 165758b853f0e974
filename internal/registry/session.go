package registry

import "context"

// Session is one disposable automated browser session against the registry.
// Implementations block until the awaited state is reached or ctx is done;
// the Client owns every timeout.
type Session interface {
	// Open navigates to the search entry point and waits for the page to
	// settle.
	Open(ctx context.Context) error

	// Search types the license number into the query field and submits.
	Search(ctx context.Context, licenseNumber string) error

	// WaitForResult blocks until at least one result row is rendered and
	// returns the markup of the whole page.
	WaitForResult(ctx context.Context) (string, error)

	// OpenDetail triggers the "view detail" action on the first row.
	OpenDetail(ctx context.Context) error

	// WaitForDetail blocks until the detail panel is visible and returns
	// the markup of the whole page.
	WaitForDetail(ctx context.Context) (string, error)

	// Close tears the session down. It must be safe to call more than once.
	Close() error
}

// Launcher starts a fresh Session. Sessions are never reused across
// attempts.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}
