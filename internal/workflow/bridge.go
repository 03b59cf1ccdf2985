package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Target names the single field a capture round trip is allowed to change.
// TargetQuery is the odd one out: the code becomes a search keyword for the
// inventory listing instead of a context field.
type Target string

const (
	TargetBarcode    Target = "barcode"
	TargetLocation   Target = "location"
	TargetToLocation Target = "to_location"
	TargetQuery      Target = "q"
)

// ReturnTo names the logical screen a capture returns to. Empty means the
// inventory listing (query path).
type ReturnTo string

const (
	ReturnNone     ReturnTo = ""
	ReturnItem     ReturnTo = "item"
	ReturnTransfer ReturnTo = "transfer"
)

// Router is the navigation mechanism, consumed as an interface: it transfers
// an opaque bag to another logical screen, FIFO, nothing more.
type Router interface {
	Push(route string, params Params)
	Replace(route string, params Params)
}

// Capture is the external barcode/location reader: one decoded string per
// capture session, or not-ok on user cancel.
type Capture interface {
	Capture(ctx context.Context) (code string, ok bool, err error)
}

// ScanRoute is the logical screen the bridge pushes capture requests to.
const ScanRoute = "/scan"

// ScanRequest is one pending capture. It is consumed exactly once, by Resume
// or Cancel.
type ScanRequest struct {
	Target   Target
	ReturnTo ReturnTo
	Snapshot Params
}

// Result of a completed round trip. Context is the merged continuation for
// the item/transfer paths; Keyword is set for the query path instead.
type Result struct {
	Context *Context
	Keyword string
	// Cancelled marks a detour closed without a capture.
	Cancelled bool
}

var (
	// ErrNoPendingScan is returned when Resume or Cancel is called without an
	// open capture, or after the request was already consumed.
	ErrNoPendingScan = errors.New("no pending scan request")
	// ErrScanInProgress is returned when Open is called while a capture is
	// already pending.
	ErrScanInProgress = errors.New("a scan request is already pending")
)

// Bridge hands a workflow context to the capture step and receives it back
// with exactly one new scalar. The entire context rides along as the
// serialized snapshot: the detour is externally owned and may outlive any
// in-memory continuation.
type Bridge struct {
	Router Router

	mu      sync.Mutex
	pending *ScanRequest
}

// Open suspends the workflow into a capture detour. For the query path pass a
// nil context and ReturnNone.
func (b *Bridge) Open(wctx *Context, target Target, returnTo ReturnTo) (*ScanRequest, error) {
	if target != TargetBarcode && target != TargetLocation && target != TargetToLocation && target != TargetQuery {
		return nil, fmt.Errorf("unknown scan target %q", target)
	}
	if returnTo != ReturnNone && wctx == nil {
		return nil, fmt.Errorf("scan returning to %q needs a workflow context", returnTo)
	}

	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return nil, ErrScanInProgress
	}
	req := &ScanRequest{Target: target, ReturnTo: returnTo}
	if wctx != nil {
		req.Snapshot = wctx.Params()
	}
	b.pending = req
	b.mu.Unlock()

	if b.Router != nil {
		bag := Params{"target": string(target)}
		if returnTo != ReturnNone {
			bag["returnTo"] = string(returnTo)
			for k, v := range req.Snapshot {
				bag[k] = v
			}
		}
		b.Router.Push(ScanRoute, bag)
	}
	return req, nil
}

// Resume completes the pending capture with a decoded code. Exactly the
// targeted field changes; every other snapshot field survives bit for bit.
func (b *Bridge) Resume(code string) (*Result, error) {
	req, err := b.take()
	if err != nil {
		return nil, err
	}
	if req.ReturnTo == ReturnNone || req.Target == TargetQuery {
		return &Result{Keyword: code}, nil
	}
	wctx := FromParams(req.Snapshot)
	if err := wctx.setField(req.Target, code); err != nil {
		return nil, err
	}
	return &Result{Context: wctx}, nil
}

// Cancel completes the pending capture with no mutation: the caller gets the
// pre-detour context back unchanged. Cancellation is not an error.
func (b *Bridge) Cancel() (*Result, error) {
	req, err := b.take()
	if err != nil {
		return nil, err
	}
	if req.ReturnTo == ReturnNone || req.Target == TargetQuery {
		return &Result{Cancelled: true}, nil
	}
	return &Result{Context: FromParams(req.Snapshot), Cancelled: true}, nil
}

func (b *Bridge) take() (*ScanRequest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending == nil {
		return nil, ErrNoPendingScan
	}
	req := b.pending
	b.pending = nil
	return req, nil
}

// RoundTrip runs one full capture detour against an external reader: open,
// wait for a code, then resume, or cancel when the reader backs out.
func (b *Bridge) RoundTrip(ctx context.Context, reader Capture, wctx *Context, target Target, returnTo ReturnTo) (*Result, error) {
	if _, err := b.Open(wctx, target, returnTo); err != nil {
		return nil, err
	}
	code, ok, err := reader.Capture(ctx)
	if err != nil || !ok {
		res, cancelErr := b.Cancel()
		if cancelErr != nil {
			return nil, cancelErr
		}
		return res, err
	}
	return b.Resume(code)
}
