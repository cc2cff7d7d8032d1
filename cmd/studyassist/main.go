package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appI18n "github.com/pavelanni/studyassist/internal/i18n"
	"github.com/pavelanni/studyassist/internal/model"
	"github.com/pavelanni/studyassist/internal/notify"
	"github.com/pavelanni/studyassist/internal/router"
	"github.com/pavelanni/studyassist/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		// Flow errors were already shown as notifications.
		if model.KindOf(err) == model.KindUnknown {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studyassist",
		Short:         "Terminal client for the study assistant API",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	f := root.PersistentFlags()
	f.String("api-url", "http://localhost:8000", "Study assistant API base URL")
	f.String("token-store", "sqlite", "Where the session token is kept (sqlite, redis)")
	f.String("db", "studyassist.db", "SQLite database path for the session token")
	f.String("redis-url", "", "Redis URL when --token-store=redis (e.g. redis://localhost:6379/0)")
	f.Duration("list-timeout", 0, "Deadline for course and lecture listings (default 10s)")
	f.Duration("upload-timeout", 0, "Deadline for one lecture upload (default 2m0s)")
	f.Duration("request-timeout", 0, "Deadline for login, study and exam calls (default 1m0s)")
	f.StringP("lang", "l", "en", "Message language (en, ru)")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")

	root.AddCommand(
		loginCmd(),
		registerCmd(),
		logoutCmd(),
		whoamiCmd(),
		coursesCmd(),
		lecturesCmd(),
		uploadCmd(),
		resourcesCmd(),
		studyCmd(),
		examCmd(),
	)
	return root
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelWarn
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	// A missing .env file is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}

	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("STUDYASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("studyassist")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/studyassist")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (store.KV, error) {
	switch kind := strings.ToLower(v.GetString("token-store")); kind {
	case "", "sqlite":
		return store.NewSQLite(v.GetString("db"))
	case "redis":
		return store.NewRedis(ctx, v.GetString("redis-url"), "studyassist:")
	default:
		return nil, fmt.Errorf("unknown token store %q (want sqlite or redis)", kind)
	}
}

// env is what every command runs with: a wired App, its token store and a
// localised context.
type env struct {
	ctx context.Context
	v   *viper.Viper
	app *router.App
	kv  store.KV
}

func (e *env) Close() {
	if err := e.kv.Close(); err != nil {
		slog.Warn("close token store", "error", err)
	}
}

// setup reads configuration and wires the App. With requireSession the
// persisted session must exist.
func setup(cmd *cobra.Command, requireSession bool) (*env, error) {
	v := viperForCmd(cmd)
	setupLogging(v)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	ctx := appI18n.WithLang(cmd.Context(), lang)

	kv, err := openStore(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}

	app, err := router.New(router.Config{
		APIURL:         v.GetString("api-url"),
		ListTimeout:    v.GetDuration("list-timeout"),
		UploadTimeout:  v.GetDuration("upload-timeout"),
		RequestTimeout: v.GetDuration("request-timeout"),
	}, kv, notify.NewWriter(cmd.ErrOrStderr()))
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	e := &env{ctx: ctx, v: v, app: app, kv: kv}

	found, err := app.Session.Restore(ctx)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if requireSession && !found {
		e.Close()
		msg := appI18n.T(ctx, "TokenMissing")
		fmt.Fprintln(cmd.ErrOrStderr(), msg)
		return nil, model.NewError(model.KindAuth, msg)
	}
	slog.Debug("client ready", "api_url", v.GetString("api-url"), "lang", lang, "session", found)
	return e, nil
}
