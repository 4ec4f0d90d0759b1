package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	FlagServer  = "server"
	FlagVerbose = "verbose"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	rootCmd := &cobra.Command{
		Use:          "timerctl",
		Short:        "Control and watch an eventclock timer",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool(FlagVerbose); verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().String(FlagServer, envOr("EVENTCLOCK_URL", "http://localhost:8080"), "eventclock base URL")
	rootCmd.PersistentFlags().BoolP(FlagVerbose, "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newStartCmd(),
		newCommandCmd("pause", "Pause the running timer"),
		newCommandCmd("reset", "Reset the timer to idle"),
		newStateCmd(),
		newWatchCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func clientFrom(cmd *cobra.Command) *Client {
	server, _ := cmd.Flags().GetString(FlagServer)
	return NewClient(server)
}

func newStartCmd() *cobra.Command {
	var (
		direction string
		precision string
		maxDur    string
		stop      string
		preset    string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start or resume the timer",
		Long: `Start the timer with the given configuration, or resume it when paused.

--max accepts HH:MM:SS, MM:SS or plain seconds and is required for countdowns.`,
		Example: `  timerctl start --direction down --max 20:00 --precision s
  timerctl start --preset half`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildStartRequest(direction, precision, maxDur, stop)
			if err != nil {
				return err
			}

			resp, err := clientFrom(cmd).Start(cmd.Context(), preset, req)
			if err != nil {
				return err
			}
			printSnapshot(resp.State)
			return nil
		},
	}

	cmd.Flags().StringVarP(&direction, "direction", "d", "", "up or down")
	cmd.Flags().StringVarP(&precision, "precision", "p", "", "s, ds, cs or ms")
	cmd.Flags().StringVarP(&maxDur, "max", "m", "", "maximum duration")
	cmd.Flags().StringVar(&stop, "stop", "", "auto or none")
	cmd.Flags().StringVar(&preset, "preset", "", "named preset from the server config")

	return cmd
}

func newCommandCmd(command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := clientFrom(cmd).Command(cmd.Context(), command)
			if err != nil {
				return err
			}
			printSnapshot(resp.State)
			return nil
		},
	}
}

func newStateCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the current timer state",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, raw, err := clientFrom(cmd).State(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				fmt.Println(string(raw))
				return nil
			}
			printSnapshot(snap)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot")
	return cmd
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow timer_update pushes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return clientFrom(cmd).Watch(cmd.Context(), func(event *Update) {
				fmt.Printf("%s  %-8s %-7s %s\n",
					event.Timestamp.Local().Format("15:04:05.000"),
					event.Reason,
					event.Data.Status,
					event.Data.FormattedTime,
				)
			})
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
