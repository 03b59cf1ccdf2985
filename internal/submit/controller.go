package submit

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stockline/internal/api"
	"stockline/internal/domain"
	"stockline/internal/session"
	"stockline/internal/workflow"
)

// Candidate endpoints tried in order until one accepts. The legacy movement
// path is kept for backends that predate the rename.
var (
	movementEndpoints = []string{"/api/mobile/movements", "/api/mobile/stock-movements"}
	transferEndpoints = []string{"/api/mobile/transfer"}
)

// ErrInFlight reports a second Submit for a workflow whose first submission
// has not finished.
var ErrInFlight = errors.New("submission already in flight")

// Next tells the caller what the screen does after an accepted submission.
type Next string

const (
	// NextReturnToList ends the workflow and goes back to the listing.
	NextReturnToList Next = "return_to_list"
	// NextReopenCapture keeps the workflow alive and reopens the scanner,
	// the quick-in loop.
	NextReopenCapture Next = "reopen_capture"
)

// Outcome describes an accepted submission.
type Outcome struct {
	Endpoint       string
	IdempotencyKey string
	Next           Next
	// Context is the follow-up workflow context for NextReopenCapture,
	// nil otherwise.
	Context *workflow.Context
}

// Journal receives submission events. Optional.
type Journal interface {
	Append(ctx context.Context, evtType string, payload map[string]any) error
}

// Controller validates a workflow context and posts it to the backend,
// walking candidate endpoints with a single idempotency key.
type Controller struct {
	Client   *api.Client
	Sessions *session.Manager
	Journal  Journal
	Log      *logrus.Logger

	// NewKey mints idempotency keys, uuid by default. Tests override it.
	NewKey func() string

	mu       sync.Mutex
	inflight map[string]bool
}

func NewController(client *api.Client, sessions *session.Manager) *Controller {
	return &Controller{
		Client:   client,
		Sessions: sessions,
		Log:      logrus.StandardLogger(),
		NewKey:   uuid.NewString,
		inflight: map[string]bool{},
	}
}

// Submit validates, builds the payload, and posts it. Validation failures
// return before any network traffic. Candidate endpoints share one
// idempotency key; a later Submit call mints a fresh one.
func (c *Controller) Submit(ctx context.Context, wctx *workflow.Context) (*Outcome, error) {
	if err := c.begin(wctx.ID); err != nil {
		return nil, err
	}
	defer c.end(wctx.ID)

	if err := c.validate(wctx); err != nil {
		return nil, err
	}
	qty, err := wctx.ParseQuantity()
	if err != nil {
		return nil, err
	}

	key := c.NewKey()
	var endpoints []string
	var payload any
	if wctx.Mode == workflow.ModeTransfer {
		endpoints = transferEndpoints
		payload = domain.Transfer{
			ItemID:         wctx.ItemID,
			Artist:         wctx.Artist,
			Category:       wctx.Category,
			AlbumVersion:   wctx.AlbumVersion,
			Option:         wctx.Option,
			FromLocation:   wctx.Location,
			ToLocation:     wctx.ToLocation,
			Quantity:       qty,
			Memo:           wctx.Memo,
			Barcode:        wctx.Barcode,
			IdempotencyKey: key,
		}
	} else {
		endpoints = movementEndpoints
		payload = domain.Movement{
			Artist:         wctx.Artist,
			Category:       wctx.Category,
			AlbumVersion:   wctx.AlbumVersion,
			Option:         wctx.Option,
			Location:       wctx.Location,
			Quantity:       qty,
			Direction:      string(wctx.EffectiveDirection()),
			Memo:           wctx.Memo,
			Barcode:        wctx.Barcode,
			IdempotencyKey: key,
		}
	}

	sess := c.Sessions.Current()
	var lastErr error
	for _, ep := range endpoints {
		if err := c.Client.PostJSON(ctx, ep, sess.Token, payload, nil); err != nil {
			c.Log.WithFields(logrus.Fields{"endpoint": ep, "key": key}).
				WithError(err).Warn("submission attempt failed")
			lastErr = err
			continue
		}
		c.record(ctx, "submission.accepted", map[string]any{
			"mode":     string(wctx.Mode),
			"endpoint": ep,
			"key":      key,
		})
		return c.outcome(wctx, ep, key), nil
	}

	c.record(ctx, "submission.failed", map[string]any{
		"mode": string(wctx.Mode),
		"key":  key,
	})
	return nil, lastErr
}

// validate checks everything that must hold before any request goes out.
func (c *Controller) validate(wctx *workflow.Context) error {
	sess := c.Sessions.Current()
	if sess.Status != session.StatusSignedIn {
		return &api.AuthError{State: string(sess.Status)}
	}
	if c.Client == nil || c.Client.Base == "" {
		return &api.ConfigError{Reason: "base endpoint not configured"}
	}
	if strings.TrimSpace(wctx.Artist) == "" {
		return &api.ValidationError{Field: "artist", Reason: "required"}
	}
	if strings.TrimSpace(wctx.Category) == "" {
		return &api.ValidationError{Field: "category", Reason: "required"}
	}
	if strings.TrimSpace(wctx.AlbumVersion) == "" {
		return &api.ValidationError{Field: "album_version", Reason: "required"}
	}
	if wctx.Mode == workflow.ModeTransfer {
		if strings.TrimSpace(wctx.Location) == "" {
			return &api.ValidationError{Field: "location", Reason: "required"}
		}
		if strings.TrimSpace(wctx.ToLocation) == "" {
			return &api.ValidationError{Field: "to_location", Reason: "required"}
		}
	} else if strings.TrimSpace(wctx.Location) == "" {
		return &api.ValidationError{Field: "location", Reason: "required"}
	}
	return nil
}

// outcome builds the post-acceptance step. Quick-in clears the barcode and
// hands back a cloned context so the loop rescans into fresh state.
func (c *Controller) outcome(wctx *workflow.Context, endpoint, key string) *Outcome {
	out := &Outcome{Endpoint: endpoint, IdempotencyKey: key, Next: NextReturnToList}
	if wctx.Mode == workflow.ModeQuickIn {
		next := wctx.Clone()
		next.Barcode = ""
		out.Next = NextReopenCapture
		out.Context = next
	}
	return out
}

func (c *Controller) begin(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[id] {
		return ErrInFlight
	}
	c.inflight[id] = true
	return nil
}

func (c *Controller) end(id string) {
	c.mu.Lock()
	delete(c.inflight, id)
	c.mu.Unlock()
}

func (c *Controller) record(ctx context.Context, evt string, payload map[string]any) {
	if c.Journal == nil {
		return
	}
	if err := c.Journal.Append(ctx, evt, payload); err != nil {
		c.Log.WithError(err).Warn("journal append failed")
	}
}
