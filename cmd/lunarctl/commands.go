package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jrsteele09/lunar-session/client"
	"github.com/jrsteele09/lunar-session/devserver"
	"github.com/jrsteele09/lunar-session/internal/config"
	"github.com/jrsteele09/lunar-session/session"
	"github.com/jrsteele09/lunar-session/token"
	refreshrepofake "github.com/jrsteele09/lunar-session/token/refresh/repofake"
	"github.com/jrsteele09/lunar-session/users"
	fakeuserrepo "github.com/jrsteele09/lunar-session/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app is what every session command works with.
type app struct {
	cfg     config.Config
	manager *session.Manager
	close   func()
}

func (f *globalFlags) newApp(ctx context.Context, options ...session.Option) (*app, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}

	st, closeStore, err := openStore(ctx, cfg, cfg.GetStorageName())
	if err != nil {
		return nil, err
	}

	api := client.New(cfg.GetBaseURL(), client.WithTimeout(cfg.GetRequestTimeout()))
	manager, err := session.NewManager(cfg, api, st, options...)
	if err != nil {
		closeStore()
		return nil, err
	}
	if err := manager.Restore(ctx); err != nil {
		log.Err(err).Msg("Failed to restore session")
	}
	return &app{cfg: cfg, manager: manager, close: closeStore}, nil
}

func loginCmd(flags *globalFlags) *cobra.Command {
	var identifier, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("LUNAR_PASSWORD")
			}
			a, err := flags.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.manager.Login(cmd.Context(), identifier, password); err != nil {
				return err
			}
			s := a.manager.Snapshot()
			if s.User != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", s.User.Username, s.User.Role)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged in")
			}
			if s.Error != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", s.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&identifier, "identifier", "u", "", "Username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (defaults to $LUNAR_PASSWORD)")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func logoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := flags.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func statusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the stored session, refreshing it if it is about to expire",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := flags.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			a.manager.CheckAuth(cmd.Context())
			printStatus(cmd, a.manager.Snapshot())
			return nil
		},
	}
}

func refreshCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := flags.newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if !a.manager.Refresh(cmd.Context()) {
				if err := a.manager.Logout(cmd.Context()); err != nil {
					log.Err(err).Msg("Logout after refresh failure")
				}
				return errors.New("refresh failed, session cleared")
			}
			printStatus(cmd, a.manager.Snapshot())
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, s session.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "State:   %s\n", s.State)
	if s.User != nil {
		fmt.Fprintf(out, "User:    %s <%s> (%s)\n", s.User.Username, s.User.Email, s.User.Role)
	}
	if claims, err := token.Decode(s.AccessToken); err == nil {
		fmt.Fprintf(out, "Expires: %s (in %s)\n", claims.ExpiresAt.Local().Format(time.RFC1123),
			time.Until(claims.ExpiresAt).Round(time.Second))
	}
	if s.Error != "" {
		fmt.Fprintf(out, "Error:   %s\n", s.Error)
	}
}

func watchCmd(flags *globalFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the session fresh until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			registry := prometheus.NewRegistry()
			metrics, err := session.NewMetrics(registry)
			if err != nil {
				return err
			}
			a, err := flags.newApp(ctx, session.WithMetrics(metrics))
			if err != nil {
				return err
			}
			defer a.close()
			displayAppname(a.cfg.GetAppName())

			if metricsAddr == "" {
				metricsAddr = a.cfg.GetMetricsAddr()
			}
			if metricsAddr != "" {
				go serveMetrics(ctx, metricsAddr, registry)
			}

			// Runs before a.close so the watch is gone before the store closes.
			waitWatch := startStoreWatch(ctx, a.manager.WatchStore)
			defer func() {
				stop()
				waitWatch()
			}()

			scheduler := a.manager.StartAutoRefresh(ctx)
			defer scheduler.Stop()

			states, unsubscribe := a.manager.Subscribe()
			defer unsubscribe()

			log.Info().Str("state", a.manager.State().String()).Msg("Watching session")
			for {
				select {
				case <-ctx.Done():
					log.Info().Msg("Stopping")
					return nil
				case st := <-states:
					log.Info().Str("state", st.String()).Msg("Session state changed")
				}
			}
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

// startStoreWatch runs watch in the background. The returned func blocks
// until it has returned.
func startStoreWatch(ctx context.Context, watch func(context.Context) error) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := watch(ctx)
		switch {
		case errors.Is(err, session.ErrWatchUnsupported):
			log.Info().Msg("Store does not support change notifications")
		case err != nil:
			log.Err(err).Msg("Store watch stopped")
		}
	}()
	return func() { <-done }
}

func serveMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Err(err).Msg("Metrics server stopped")
	}
}

func devserverCmd(flags *globalFlags) *cobra.Command {
	var addr, user, password, role string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local LunarBase-compatible auth server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			displayAppname(cfg.GetAppName())

			srv, err := devserver.New(cfg, devserver.Repos{
				Users:         fakeuserrepo.NewFakeUserRepo(),
				RefreshTokens: refreshrepofake.NewFakeRefreshTokenRepo(),
			})
			if err != nil {
				return err
			}

			seeded, generated, err := srv.EnsureUser(user, password, users.RoleType(role))
			if err != nil {
				return err
			}
			if generated != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s with password %s\n", seeded.Email, generated)
			}

			if addr == "" {
				addr = cfg.GetDevServerAddr()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to $LUNAR_DEV_ADDR)")
	cmd.Flags().StringVar(&user, "user", devserver.DefaultAdminUsername, "Username or email to seed")
	cmd.Flags().StringVar(&password, "password", "", "Password for the seeded user (random when empty)")
	cmd.Flags().StringVar(&role, "role", string(users.RoleAdmin), "Role of the seeded user")
	return cmd
}
