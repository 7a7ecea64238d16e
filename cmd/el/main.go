package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"eventline/internal/app"
	"eventline/internal/config"
	"eventline/internal/engine"
	"eventline/internal/logging"
	"eventline/internal/repo"
	"eventline/internal/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "el",
	Short: "eventline CLI",
	Long: `eventline plans the day of an event as one ordered timeline.
- Event: the wedding, gala or offsite; owns people, vendors, documents and the timeline.
- Timeline: items back to back; only the first item's time is set, every other time follows from durations.
- People and vendors: assigned to items; each can get a share link showing their own schedule.
- Share links: signed, expiring, revocable URLs; guests only ever see the global schedule.
- Activity log: every change, view with 'el log tail'.`,
	SilenceUsage: true,
}

// Keys read from EVENTLINE_* variables even without a default.
var envKeys = []string{
	"db.dsn",
	"auth.jwt_secret",
	"auth.jwt_audience",
	"auth.dev_login",
	"auth.share_secret",
	"s3.endpoint",
	"s3.bucket",
	"s3.access_key",
	"s3.secret_key",
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	for k, v := range config.ServerDefaults() {
		viper.SetDefault(k, v)
	}
	viper.SetEnvPrefix("EVENTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("server")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Join(viper.GetString("workspace"), ".eventline"))
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
	}
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "server config file (default <workspace>/.eventline/server.yaml)")
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor", "organizer@local", "acting organizer")
	flags.StringP("event", "e", "", "event id (defaults to your only event)")
	for _, name := range []string{"workspace", "json", "actor", "event"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(personCmd())
	rootCmd.AddCommand(vendorCmd())
	rootCmd.AddCommand(timelineCmd())
	rootCmd.AddCommand(shareCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(apikeyCmd())
}

func serverConfig() (config.Server, error) {
	var s config.Server
	if err := viper.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("read config: %w", err)
	}
	return s, nil
}

func newLogger(s config.Server) (logging.Logger, error) {
	return logging.New(os.Stderr, s.Log.Level, s.Log.Format)
}

func serveCmd() *cobra.Command {
	var basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := serverConfig()
			if err != nil {
				return err
			}
			if err := s.Validate(); err != nil {
				return err
			}
			log, err := newLogger(s)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := app.Open(ctx, s, log)
			if err != nil {
				return err
			}
			defer rt.Close()
			if rt.Engine.Storage == nil {
				log.Warn(ctx, "document storage disabled; set s3.bucket and keys to enable uploads")
			}

			handler, err := server.New(server.Config{
				Engine:   rt.Engine,
				BasePath: basePath,
				Log:      log,
				Auth: server.AuthConfig{
					JWTSecret:   s.Auth.JWTSecret,
					JWTIssuer:   s.Auth.JWTIssuer,
					JWTAudience: s.Auth.JWTAudience,
					TokenTTL:    s.Auth.TokenTTL,
					DevLogin:    s.Auth.DevLogin,
				},
			})
			if err != nil {
				return err
			}
			hooks := server.NewWebhookDispatcher(rt.Engine.Repo, s.Webhooks, log)
			if err := hooks.Start(ctx); err != nil {
				return err
			}
			defer hooks.Stop()

			srv := &http.Server{Addr: s.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			log.Info(ctx, "serving eventline API", "addr", s.Addr, "base_path", basePath, "docs", "/docs")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func logCmd() *cobra.Command {
	l := &cobra.Command{Use: "log", Short: "Activity log"}
	l.AddCommand(logTailCmd())
	return l
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.ActivityFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Latest activity of the event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEvent(cmd.Context(), func(ctx context.Context, e engine.Engine, eventID, actor string) error {
				rows, err := e.Activity(ctx, eventID, actor, n, 0, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rows)
				}
				tw := newTable(table.Row{"ID", "When", "Type", "Entity", "Actor", "Payload"})
				for _, a := range rows {
					tw.AppendRow(table.Row{a.ID, a.TS, a.Type, a.EntityKind + " " + a.EntityID, a.ActorID, a.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of rows")
	cmd.Flags().StringVar(&f.Type, "type", "", "activity type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key for the acting organizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, secret, err := e.CreateAPIKey(ctx, viper.GetString("actor"), name)
				if err != nil {
					return err
				}
				key.KeyHash = ""
				if viper.GetBool("json") {
					return printJSON(map[string]any{"key": key, "secret": secret})
				}
				fmt.Printf("API key %s for %s\n%s\nStore it now; it is not shown again.\n", key.ID, key.ActorID, secret)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")
	k.AddCommand(create)
	return k
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	s, err := serverConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(s)
	if err != nil {
		return err
	}
	rt, err := app.Open(ctx, s, log)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.Engine)
}

func withEvent(ctx context.Context, fn func(ctx context.Context, e engine.Engine, eventID, actor string) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		actor := viper.GetString("actor")
		eventID, err := app.ResolveEvent(ctx, e, viper.GetString("event"), actor)
		if err != nil {
			return err
		}
		return fn(ctx, e, eventID, actor)
	})
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	return tw
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printJSONOrTable prints a single record as key/value rows.
func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return printJSON(v)
	}
	tw := newTable(table.Row{"Field", "Value"})
	for _, k := range sortedKeys(fields) {
		tw.AppendRow(table.Row{k, fields[k]})
	}
	tw.Render()
	return nil
}

func optionalString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
