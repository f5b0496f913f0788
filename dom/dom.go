// Package dom defines the contract between the locator engine and the
// component that actually evaluates selectors and performs actions inside a
// live document.
package dom

import (
	"context"
	"errors"

	"github.com/liuxd6825/xk6-locator/selector"
)

// ElementRef is an opaque reference to an element, only meaningful inside
// the document it was obtained from.
type ElementRef string

// DocumentID identifies one document instance of a frame. A frame gets a
// new DocumentID on every navigation.
type DocumentID string

// ExecutionWorld is the script world a query runs in.
type ExecutionWorld int

// Execution worlds.
const (
	// WorldMain is the world page scripts run in.
	WorldMain ExecutionWorld = iota
	// WorldUtility is an isolated world unaffected by page scripts.
	WorldUtility
)

func (w ExecutionWorld) String() string {
	if w == WorldUtility {
		return "utility"
	}
	return "main"
}

// Query asks a provider for the elements matching Selector.
type Query struct {
	Selector *selector.Selector
	// Root scopes the query to the subtree of an element. Empty means the
	// document.
	Root     ElementRef
	World    ExecutionWorld
	Document DocumentID
}

// Provider errors. Any other error returned by a QueryProvider is a hard
// failure.
var (
	// ErrNotConnected is returned when the element was removed from the
	// document.
	ErrNotConnected = errors.New("element is not attached to the DOM")
	// ErrStaleDocument is returned when the document the call refers to has
	// been replaced by a navigation.
	ErrStaleDocument = errors.New("document was replaced by a navigation")
	// ErrNotFrameOwner is returned by FrameOwner for elements that host no
	// frame.
	ErrNotFrameOwner = errors.New("element is not an iframe")
)

// QueryProvider evaluates selectors and performs actions against the
// documents of a frame. Implementations must be safe for concurrent use.
type QueryProvider interface {
	// QueryAll returns every element matching q in document order.
	QueryAll(ctx context.Context, q Query) ([]ElementRef, error)
	// State reports whether ref is currently in state s.
	State(ctx context.Context, doc DocumentID, ref ElementRef, s ElementState) (bool, error)
	// Perform runs a on ref. The result type depends on the action.
	Perform(ctx context.Context, doc DocumentID, ref ElementRef, a Action) (any, error)
	// Release frees any resource the provider holds for ref.
	Release(ctx context.Context, doc DocumentID, ref ElementRef) error
}

// FrameOwner is implemented by providers that can tell which frame an
// iframe element hosts. Selectors entering such frames are resolved against
// the child frame's own documents.
type FrameOwner interface {
	// ContentFrame returns the id of the frame hosted by ref.
	ContentFrame(ctx context.Context, doc DocumentID, ref ElementRef) (string, error)
}
