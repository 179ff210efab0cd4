// Command lunarctl drives a LunarBase session from the terminal and can run
// a local development auth server.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/lunar-session/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "PANIC: %v\n%s\n", r, debug.Stack())
			os.Exit(2)
		}
	}()

	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "lunarctl",
		Short:         "LunarBase session client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("LUNAR_CONFIG"), "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		loginCmd(flags),
		logoutCmd(flags),
		statusCmd(flags),
		refreshCmd(flags),
		watchCmd(flags),
		devserverCmd(flags),
	)
	return cmd
}

// loadConfig reads the configuration and sets up the global logger.
func (f *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	level := f.logLevel
	if level == "" {
		level = cfg.GetLogLevel()
	}
	setupLogging(cfg.GetEnv(), level)
	return cfg, nil
}

func setupLogging(env, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if strings.EqualFold(env, "PROD") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
