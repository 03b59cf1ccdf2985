package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"stockline/internal/domain"
)

// Config for the dev server handler.
type Config struct {
	JWTSecret string
	Store     *Store
	// SimulateHTML makes every mobile API path answer with an HTML page,
	// the way a captive portal or a misrouted base URL would.
	SimulateHTML bool

	Now func() time.Time
}

// apiError is the error envelope the mobile client expects: a single
// error string at the top level.
type apiError struct {
	status  int
	Message string `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message string) huma.StatusError {
	return &apiError{status: status, Message: message}
}

// New returns an HTTP handler exposing the dev backend: a password token
// grant plus the mobile inventory, item, movement and transfer endpoints.
func New(cfg Config) (http.Handler, error) {
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		return newAPIError(status, msg)
	}

	router := chi.NewRouter()
	if cfg.SimulateHTML {
		router.Use(htmlSimulator)
	}
	router.Use(newAuthMiddleware(cfg.JWTSecret))
	router.Post("/auth/v1/token", tokenHandler(cfg))

	hcfg := huma.DefaultConfig("Stockline Dev API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)

	registerInventory(api, cfg.Store)
	registerItems(api, cfg.Store)
	registerMovements(api, cfg.Store)
	registerTransfer(api, cfg.Store)

	return router, nil
}

func htmlSimulator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !strings.HasPrefix(req.URL.Path, "/api/mobile/") {
			next.ServeHTTP(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>Maintenance</body></html>"))
	})
}

// tokenHandler mimics the password grant of the auth provider: any
// non-empty credentials mint a signed token.
func tokenHandler(cfg Config) http.HandlerFunc {
	type grantRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	type grantResponse struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	return func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("grant_type") != "password" {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "unsupported grant type"))
			return
		}
		var body grantRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "invalid request body"))
			return
		}
		if strings.TrimSpace(body.Email) == "" || body.Password == "" {
			respondStatusError(w, newAPIError(http.StatusBadRequest, "email and password required"))
			return
		}
		token, err := mintToken(cfg.JWTSecret, body.Email, cfg.Now())
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusInternalServerError, "token signing failed"))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(grantResponse{AccessToken: token, TokenType: "bearer"})
	}
}

func registerInventory(api huma.API, store *Store) {
	type listInput struct {
		Q        string `query:"q"`
		Category string `query:"category"`
		Option   string `query:"option"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "list-inventory",
		Method:      http.MethodGet,
		Path:        "/api/mobile/inventory",
		Summary:     "Search inventory",
	}, func(ctx context.Context, input *listInput) (*struct {
		Body []domain.InventoryRow `json:"body"`
	}, error) {
		rows := store.Search(input.Q, input.Category, input.Option)
		if rows == nil {
			rows = []domain.InventoryRow{}
		}
		return &struct {
			Body []domain.InventoryRow `json:"body"`
		}{Body: rows}, nil
	})
}

func registerItems(api huma.API, store *Store) {
	type itemPath struct {
		ItemID string `path:"item_id"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-item",
		Method:      http.MethodGet,
		Path:        "/api/mobile/items/{item_id}",
		Summary:     "Item metadata",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *itemPath) (*struct {
		Body domain.MetaInfo `json:"body"`
	}, error) {
		info, ok := store.Item(input.ItemID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "item not found")
		}
		return &struct {
			Body domain.MetaInfo `json:"body"`
		}{Body: info}, nil
	})
}

type acceptedResponse struct {
	Status string `json:"status"`
	Replay bool   `json:"replay,omitempty"`
}

func registerMovements(api huma.API, store *Store) {
	handler := func(endpoint string) func(context.Context, *struct {
		Body domain.Movement `json:"body"`
	}) (*struct {
		Body acceptedResponse `json:"body"`
	}, error) {
		return func(ctx context.Context, input *struct {
			Body domain.Movement `json:"body"`
		}) (*struct {
			Body acceptedResponse `json:"body"`
		}, error) {
			m := input.Body
			if m.Artist == "" || m.Category == "" || m.AlbumVersion == "" || m.Location == "" {
				return nil, newAPIError(http.StatusBadRequest, "missing fields")
			}
			if m.Direction != "IN" && m.Direction != "OUT" {
				return nil, newAPIError(http.StatusBadRequest, "direction must be IN or OUT")
			}
			if m.Quantity < 1 {
				return nil, newAPIError(http.StatusBadRequest, "quantity must be at least 1")
			}
			if m.IdempotencyKey == "" {
				return nil, newAPIError(http.StatusBadRequest, "idempotencyKey required")
			}
			replay := store.Accept(m.IdempotencyKey, endpoint)
			return &struct {
				Body acceptedResponse `json:"body"`
			}{Body: acceptedResponse{Status: "ok", Replay: replay}}, nil
		}
	}

	huma.Register(api, huma.Operation{
		OperationID: "create-movement",
		Method:      http.MethodPost,
		Path:        "/api/mobile/movements",
		Summary:     "Record a stock movement",
		Errors:      []int{http.StatusBadRequest},
	}, handler("/api/mobile/movements"))

	// Older deployments exposed the movement endpoint under a different
	// name. Kept so clients walking both candidates can be exercised.
	huma.Register(api, huma.Operation{
		OperationID: "create-movement-legacy",
		Method:      http.MethodPost,
		Path:        "/api/mobile/stock-movements",
		Summary:     "Record a stock movement (legacy path)",
		Errors:      []int{http.StatusBadRequest},
	}, handler("/api/mobile/stock-movements"))
}

func registerTransfer(api huma.API, store *Store) {
	huma.Register(api, huma.Operation{
		OperationID: "create-transfer",
		Method:      http.MethodPost,
		Path:        "/api/mobile/transfer",
		Summary:     "Record a location transfer",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body domain.Transfer `json:"body"`
	}) (*struct {
		Body acceptedResponse `json:"body"`
	}, error) {
		t := input.Body
		if t.Artist == "" || t.Category == "" || t.AlbumVersion == "" {
			return nil, newAPIError(http.StatusBadRequest, "missing fields")
		}
		if t.FromLocation == "" || t.ToLocation == "" {
			return nil, newAPIError(http.StatusBadRequest, "both locations required")
		}
		if t.Quantity < 1 {
			return nil, newAPIError(http.StatusBadRequest, "quantity must be at least 1")
		}
		if t.IdempotencyKey == "" {
			return nil, newAPIError(http.StatusBadRequest, "idempotencyKey required")
		}
		replay := store.Accept(t.IdempotencyKey, "/api/mobile/transfer")
		return &struct {
			Body acceptedResponse `json:"body"`
		}{Body: acceptedResponse{Status: "ok", Replay: replay}}, nil
	})
}
