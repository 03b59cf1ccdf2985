package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stockline/internal/api"
	"stockline/internal/config"
	"stockline/internal/journal"
	"stockline/internal/meta"
	"stockline/internal/query"
	"stockline/internal/server"
	"stockline/internal/session"
	"stockline/internal/submit"
	"stockline/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Stockline CLI",
	Long: `Stockline is the warehouse inventory client: search stock, record
movements in and out, and transfer quantities between locations. Scans can be
typed or piped; every submission carries an idempotency key so a retried
request is never double-counted.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("STOCKLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("api-base", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().Bool("insecure", false, "allow a plain http API base (dev server only)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("api-base", rootCmd.PersistentFlags().Lookup("api-base"))
	_ = viper.BindPFlag("insecure", rootCmd.PersistentFlags().Lookup("insecure"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(inventoryCmd())
	rootCmd.AddCommand(moveCmd())
	rootCmd.AddCommand(quickinCmd())
	rootCmd.AddCommand(transferCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(devserverCmd())
}

// env holds the wired client stack for one command invocation.
type env struct {
	cfg      *config.Config
	client   *api.Client
	sessions *session.Manager
	journal  *journal.Journal
	unsub    func()
}

func newEnv(ctx context.Context) (*env, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	base := strings.TrimRight(strings.TrimSpace(viper.GetString("api-base")), "/")
	if base == "" {
		base = cfg.API.Base
	}
	if viper.GetBool("insecure") {
		if base == "" {
			return nil, &api.ConfigError{Reason: "api base is empty"}
		}
	} else {
		base, err = config.NormalizeBase(base)
		if err != nil {
			return nil, err
		}
	}

	authURL := cfg.Auth.URL
	if authURL == "" {
		authURL = base
	}
	provider := &session.GoTrueProvider{
		URL:       authURL,
		AnonKey:   cfg.Auth.AnonKey,
		Workspace: workspace,
	}
	sessions := session.NewManager(provider)
	if err := sessions.Start(ctx); err != nil {
		return nil, err
	}

	j, err := journal.Open(workspace)
	if err != nil {
		sessions.Close()
		return nil, err
	}

	e := &env{cfg: cfg, client: api.New(base), sessions: sessions, journal: j}
	e.unsub = sessions.Subscribe(func(s session.Session) {
		evt := "session.signed_out"
		if s.Status == session.StatusSignedIn {
			evt = "session.signed_in"
		}
		_ = j.Append(ctx, evt, map[string]any{})
	})
	return e, nil
}

func (e *env) Close() {
	if e.unsub != nil {
		e.unsub()
	}
	e.sessions.Close()
	_ = e.journal.Close()
}

func withEnv(ctx context.Context, fn func(context.Context, *env) error) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var base string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(base)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "https://example.invalid", "API base URL")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				fmt.Println("no config file; run sl config init")
				return nil
			}
			return printJSONOrTable(cfg)
		},
	}
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				if email == "" {
					return fmt.Errorf("--email required")
				}
				if password == "" {
					fmt.Print("password: ")
					line, err := bufio.NewReader(os.Stdin).ReadString('\n')
					if err != nil {
						return err
					}
					password = strings.TrimRight(line, "\r\n")
				}
				if err := e.sessions.SignIn(ctx, email, password); err != nil {
					return err
				}
				fmt.Println("signed in as", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and drop the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				if err := e.sessions.SignOut(ctx); err != nil {
					return err
				}
				fmt.Println("signed out")
				return nil
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				s := e.sessions.Current()
				return printJSONOrTable(map[string]string{"status": string(s.Status)})
			})
		},
	}
}

func inventoryCmd() *cobra.Command {
	var category, option string
	var scan bool
	cmd := &cobra.Command{
		Use:   "inventory [keyword]",
		Short: "Search the inventory listing",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				eng := query.New(e.client, e.sessions)
				eng.SetCategory(query.Category(category))
				eng.SetOption(option)

				keyword := ""
				if len(args) == 1 {
					keyword = args[0]
				}
				if scan {
					bridge := &workflow.Bridge{Router: noopRouter{}}
					res, err := bridge.RoundTrip(ctx, stdinCapture{prompt: "scan> "}, nil, workflow.TargetQuery, workflow.ReturnNone)
					if err != nil {
						return err
					}
					if res.Cancelled {
						return nil
					}
					keyword = res.Keyword
					_ = e.journal.Append(ctx, "scan.captured", map[string]any{"target": "q", "code": keyword})
					if _, err := eng.AutoQuery(ctx, keyword); err != nil {
						return err
					}
				} else if err := eng.Query(ctx, keyword); err != nil {
					return err
				}
				_ = e.journal.Append(ctx, "query.completed", map[string]any{"q": keyword, "rows": len(eng.Rows())})

				rows := eng.Filtered()
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Item", "Artist", "Category", "Album", "Option", "Location", "Qty"})
				for _, r := range rows {
					tw.AppendRow(table.Row{r.ItemID, r.Artist, r.Category, r.AlbumVersion, r.Option, r.Location, r.Quantity})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "all", "category filter (all, md, album)")
	cmd.Flags().StringVar(&option, "option", "", "option substring filter")
	cmd.Flags().BoolVar(&scan, "scan", false, "read the keyword from a scan instead of the argument")
	return cmd
}

func moveCmd() *cobra.Command {
	var direction, barcode, location, qty, memo string
	var scan bool
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Record a stock movement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				dir := workflow.Direction(strings.ToUpper(direction))
				if dir != workflow.DirectionIn && dir != workflow.DirectionOut {
					return fmt.Errorf("--direction must be IN or OUT")
				}
				wctx := workflow.New(workflow.ModeMovement, dir)
				wctx.Barcode = barcode
				wctx.Location = location
				wctx.Quantity = qty
				wctx.Memo = memo

				eng := query.New(e.client, e.sessions)
				bridge := &workflow.Bridge{Router: noopRouter{}}
				if scan && wctx.Barcode == "" {
					res, err := bridge.RoundTrip(ctx, stdinCapture{prompt: "barcode> "}, wctx, workflow.TargetBarcode, workflow.ReturnItem)
					if err != nil {
						return err
					}
					if res.Cancelled {
						return fmt.Errorf("scan cancelled")
					}
					wctx = res.Context
					_ = e.journal.Append(ctx, "scan.captured", map[string]any{"target": "barcode", "code": wctx.Barcode})
				}
				if err := workflow.Hydrate(ctx, eng, wctx); err != nil {
					return err
				}
				if scan && wctx.Location == "" {
					res, err := bridge.RoundTrip(ctx, stdinCapture{prompt: "location> "}, wctx, workflow.TargetLocation, workflow.ReturnItem)
					if err != nil {
						return err
					}
					if res.Cancelled {
						return fmt.Errorf("scan cancelled")
					}
					wctx = res.Context
				}

				ctl := submit.NewController(e.client, e.sessions)
				ctl.Journal = e.journal
				out, err := ctl.Submit(ctx, wctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&direction, "direction", "", "IN or OUT")
	cmd.Flags().StringVar(&barcode, "barcode", "", "item barcode")
	cmd.Flags().StringVar(&location, "location", "", "stock location")
	cmd.Flags().StringVar(&qty, "qty", "1", "quantity")
	cmd.Flags().StringVar(&memo, "memo", "", "free-text memo")
	cmd.Flags().BoolVar(&scan, "scan", false, "scan missing fields interactively")
	_ = cmd.MarkFlagRequired("direction")
	return cmd
}

func quickinCmd() *cobra.Command {
	var location, qty string
	cmd := &cobra.Command{
		Use:   "quickin",
		Short: "Scan-submit loop for receiving stock",
		Long: `Reads barcodes until an empty line or EOF. Each scan is hydrated
from the listing and submitted as an IN movement, then the scanner reopens
with the location and quantity carried over.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				wctx := workflow.New(workflow.ModeQuickIn, workflow.DirectionIn)
				wctx.Location = location
				wctx.Quantity = qty

				eng := query.New(e.client, e.sessions)
				bridge := &workflow.Bridge{Router: noopRouter{}}
				ctl := submit.NewController(e.client, e.sessions)
				ctl.Journal = e.journal
				reader := stdinCapture{prompt: "barcode> "}

				for {
					res, err := bridge.RoundTrip(ctx, reader, wctx, workflow.TargetBarcode, workflow.ReturnItem)
					if err != nil {
						return err
					}
					if res.Cancelled {
						fmt.Println("done")
						return nil
					}
					wctx = res.Context
					_ = e.journal.Append(ctx, "scan.captured", map[string]any{"target": "barcode", "code": wctx.Barcode})
					if err := workflow.Hydrate(ctx, eng, wctx); err != nil {
						return err
					}
					out, err := ctl.Submit(ctx, wctx)
					if err != nil {
						return err
					}
					fmt.Printf("accepted %s via %s\n", wctx.Barcode, out.Endpoint)
					if out.Next != submit.NextReopenCapture {
						return nil
					}
					wctx = out.Context
				}
			})
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "receiving location")
	cmd.Flags().StringVar(&qty, "qty", "1", "quantity per scan")
	return cmd
}

func transferCmd() *cobra.Command {
	var itemID, barcode, from, to, qty, memo string
	var pick int
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move stock between locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), func(ctx context.Context, e *env) error {
				eng := query.New(e.client, e.sessions)
				resolver := meta.NewResolver(&meta.APIStore{Client: e.client, Sessions: e.sessions}, eng)

				switch {
				case itemID != "":
					if err := resolver.ResolveItem(ctx, itemID); err != nil {
						return err
					}
				case barcode != "":
					if err := resolver.ResolveBarcode(ctx, barcode); err != nil {
						return err
					}
				default:
					return fmt.Errorf("--item or --barcode required")
				}

				if resolver.Status() == meta.StatusAmbiguous {
					if pick < 0 {
						for i, c := range resolver.Candidates() {
							fmt.Printf("[%d] %s / %s / %s @ %s\n", i, c.Artist, c.AlbumVersion, c.Option, c.Location)
						}
						return fmt.Errorf("several items match, rerun with --pick")
					}
					if err := resolver.Select(pick); err != nil {
						return err
					}
				}

				wctx := workflow.New(workflow.ModeTransfer, workflow.DirectionOut)
				wctx.ItemID = itemID
				wctx.Barcode = barcode
				wctx.Location = from
				wctx.ToLocation = to
				wctx.Quantity = qty
				wctx.Memo = memo
				if err := resolver.Apply(wctx); err != nil {
					return err
				}

				ctl := submit.NewController(e.client, e.sessions)
				ctl.Journal = e.journal
				out, err := ctl.Submit(ctx, wctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&itemID, "item", "", "item id")
	cmd.Flags().StringVar(&barcode, "barcode", "", "item barcode")
	cmd.Flags().StringVar(&from, "from", "", "source location")
	cmd.Flags().StringVar(&to, "to", "", "destination location")
	cmd.Flags().StringVar(&qty, "qty", "1", "quantity")
	cmd.Flags().StringVar(&memo, "memo", "", "free-text memo")
	cmd.Flags().IntVar(&pick, "pick", -1, "candidate index when the barcode is ambiguous")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Local activity journal"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail journal events",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer j.Close()
			events, err := j.Tail(cmd.Context(), n, evtType)
			if err != nil {
				return err
			}
			return printJSONOrTable(events)
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

func devserverCmd() *cobra.Command {
	var addr, secret string
	var simulateHTML bool
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Start the dev backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("STOCKLINE_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or STOCKLINE_JWT_SECRET required")
			}
			handler, err := server.New(server.Config{JWTSecret: secret, SimulateHTML: simulateHTML})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving dev API on http://%s\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "JWT signing secret")
	cmd.Flags().BoolVar(&simulateHTML, "simulate-html", false, "answer API calls with HTML to exercise mismatch handling")
	return cmd
}

// --- helpers ---

// noopRouter satisfies the bridge's navigation dependency for a terminal
// front end, where the "scanner screen" is just a stdin prompt.
type noopRouter struct{}

func (noopRouter) Push(route string, params workflow.Params)    {}
func (noopRouter) Replace(route string, params workflow.Params) {}

// stdinCapture reads one scan code per line. An empty line means the user
// closed the scanner without scanning.
type stdinCapture struct {
	prompt string
}

func (c stdinCapture) Capture(ctx context.Context) (string, bool, error) {
	if c.prompt != "" {
		fmt.Print(c.prompt)
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", false, nil
	}
	code := strings.TrimSpace(line)
	if code == "" {
		return "", false, nil
	}
	return code, true, nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
