package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/rescp17/serialFileSharer/pkg/discovery"
	"github.com/rescp17/serialFileSharer/pkg/link"
	"github.com/rescp17/serialFileSharer/pkg/protocol"
	"github.com/rescp17/serialFileSharer/pkg/transfer"
	"github.com/rescp17/serialFileSharer/pkg/transport"
	"github.com/rescp17/serialFileSharer/pkg/ui"
)

// app carries what every subcommand needs once flags are resolved.
type app struct {
	opts     options
	cfg      *Config
	logger   *slog.Logger
	closeLog func()
	discover bool
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "serialFileSharer",
		Short: "Transfer files over a serial link with integrity verification",
		Long: "serialFileSharer moves a file between two endpoints over a serial line " +
			"(or a serial-over-TCP bridge) using a length-prefixed request/reply protocol. " +
			"Every upload is digested with SHA-256 and every download is verified against it.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.opts.resolve(cmd)
			if err != nil {
				return err
			}
			logger, closeLog, err := setupLogging(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg, a.logger, a.closeLog = cfg, logger, closeLog
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.closeLog != nil {
				a.closeLog()
			}
		},
	}

	a.opts.register(cmd)
	cmd.PersistentFlags().BoolVar(&a.discover, "discover", false, "Find a peer over mDNS instead of using --device")

	cmd.AddCommand(
		newUploadCmd(a),
		newDownloadCmd(a),
		newRoundTripCmd(a),
		newServeCmd(a),
	)
	return cmd
}

// linkConfig returns the configured link, replacing the device with a
// discovered peer when --discover is set.
func (a *app) linkConfig(ctx context.Context) (link.Config, error) {
	cfg := a.cfg.Link
	if !a.discover {
		return cfg, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	peer, err := discovery.FirstPeer(ctx, &discovery.MDNSAdapter{}, discovery.Query(discovery.DefaultServiceType, discovery.DefaultDomain))
	if err != nil {
		return cfg, fmt.Errorf("discover peer: %w", err)
	}
	a.logger.Info("discovered peer", "name", peer.Name, "address", peer.Address())
	cfg.Device = peer.Address()
	return cfg, nil
}

func (a *app) openChannel(ctx context.Context) (*transport.Channel, io.Closer, error) {
	cfg, err := a.linkConfig(ctx)
	if err != nil {
		return nil, nil, err
	}
	rw, err := link.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	ch := transport.New(rw,
		transport.WithLogger(a.logger),
		transport.WithWriteRate(a.cfg.WriteRate),
		transport.WithTimeout(time.Duration(a.cfg.Timeout)),
	)
	return ch, rw, nil
}

func (a *app) trace(dir protocol.Direction, m protocol.Message) {
	a.logger.Debug("frame", "dir", dir.String(), "code", m.Code.String(), "len", m.PayloadLength())
}

// run opens the link, builds a client and runs fn, under the TUI when enabled.
func (a *app) run(ctx context.Context, title string, fn func(context.Context, *transfer.Client) error) error {
	job := func(ctx context.Context, progress transfer.ProgressCallback) error {
		ch, closer, err := a.openChannel(ctx)
		if err != nil {
			return err
		}
		defer closer.Close()

		client, err := transfer.NewClient(ch,
			transfer.WithLogger(a.logger),
			transfer.WithConfig(&a.cfg.Transfer),
			transfer.WithProgress(progress),
			transfer.WithObserver(a.trace),
		)
		if err != nil {
			return err
		}
		return fn(ctx, client)
	}

	if a.cfg.TUI {
		return ui.Run(ctx, title, job)
	}
	return job(ctx, nil)
}

// pickFile returns the file named on the command line, or asks for one with
// the file browser when the TUI is enabled.
func (a *app) pickFile(ctx context.Context, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if !a.cfg.TUI {
		return "", fmt.Errorf("no file given; pass FILE or use --tui to browse")
	}
	return ui.PickFile(ctx, ".")
}
