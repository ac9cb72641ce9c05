package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logscope/logscope/internal/config"
	"github.com/logscope/logscope/internal/lineparser"
	"github.com/logscope/logscope/internal/logfile"
	"github.com/logscope/logscope/internal/server"
)

// newServeCmd runs the IPC socket as a long-running primary
// session: the first invocation binds the socket and indexes its
// argument (if any); later invocations of `logseer-core serve <path>`
// detect the running primary and forward their path to it instead of
// starting a second one.
func newServeCmd() *cobra.Command {
	var parserName string
	var maxConns int64

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Run as the primary session, accepting further paths over the IPC socket",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			setLevel(cfg.LogLevel)

			if conn, ok := server.TryConnect(cfg.SocketPath); ok {
				conn.Close()
				if len(args) == 0 {
					return fmt.Errorf("logseer-core: a primary session is already listening on %s", cfg.SocketPath)
				}
				return server.SendPath(cfg.SocketPath, args[0])
			}

			repo, err := lineparser.NewRepository(cfg.ParserConfigDir, logger)
			if err != nil {
				return fmt.Errorf("loading parser config dir %s: %w", cfg.ParserConfigDir, err)
			}

			done := make(chan logfile.State, 1)
			lf := logfile.New(cfg, repo, logger, func(s logfile.State) {
				logger.Info().Str("state", s.String()).Msg("logfile state changed")
				switch s {
				case logfile.Complete, logfile.Failed, logfile.Interrupted:
					select {
					case done <- s:
					default:
					}
				}
			}, func(p int) {
				fmt.Fprintf(progressWriter, "\r%s %d%%", progressStyle.Render("indexing"), p)
			})

			handler := func(path string) {
				logger.Info().Str("path", path).Msg("received path over IPC socket")
				switch lf.State() {
				case logfile.Idle:
					if err := lf.Open(path, parserName); err != nil {
						logger.Error().Err(err).Msg("opening path")
					}
				case logfile.Interrupted:
					if err := lf.Reload(path, parserName); err != nil {
						logger.Error().Err(err).Msg("reloading path")
					}
				default:
					// Indexing/Searching/Complete/Failed must pass through
					// Interrupted first; the done-loop below applies
					// the queued reload once that transition lands.
					lf.QueueReload(path, parserName)
					lf.Interrupt()
				}
			}
			d := server.New(cfg.SocketPath, maxConns, handler, logger)

			ctx, cancel := context.WithCancel(context.Background())
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sig
				cancel()
			}()

			go func() {
				for s := range done {
					if s == logfile.Interrupted {
						if err := lf.ApplyQueuedReload(); err != nil {
							logger.Error().Err(err).Msg("applying queued reload")
						}
					}
				}
			}()

			if len(args) == 1 {
				if err := lf.Open(args[0], parserName); err != nil {
					return err
				}
			}

			fmt.Fprintln(progressWriter, headerStyle.Render(fmt.Sprintf("listening on %s", cfg.SocketPath)))
			return d.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&parserName, "parser", "", "force a specific registered parser by name")
	cmd.Flags().Int64Var(&maxConns, "max-conns", 32, "maximum concurrent IPC connections")
	return cmd
}
