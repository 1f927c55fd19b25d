package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rescp17/serialFileSharer/internal/util"
	"github.com/rescp17/serialFileSharer/pkg/discovery"
	"github.com/rescp17/serialFileSharer/pkg/fileInfo"
	"github.com/rescp17/serialFileSharer/pkg/integrity"
	"github.com/rescp17/serialFileSharer/pkg/link"
	"github.com/rescp17/serialFileSharer/pkg/peer"
	"github.com/rescp17/serialFileSharer/pkg/transfer"
)

func newUploadCmd(a *app) *cobra.Command {
	var remoteName string

	cmd := &cobra.Command{
		Use:   "upload [FILE]",
		Short: "Send a file to the peer",
		Long:  "Send a file to the peer. With --tui and no FILE, a file browser is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.pickFile(cmd.Context(), args)
			if err != nil {
				return err
			}
			node, data, err := fileInfo.Load(path)
			if err != nil {
				return err
			}
			name := remoteName
			if name == "" {
				name = node.Name
			}

			var res *transfer.UploadResult
			err = a.run(cmd.Context(), "Uploading "+name, func(ctx context.Context, c *transfer.Client) error {
				var err error
				res, err = c.Upload(ctx, transfer.UploadRequest{Name: name, Data: data})
				return err
			})
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), [][2]string{
				{"uploaded", res.Name},
				{"type", node.MimeType},
				{"size", fmt.Sprintf("%s (%d bytes)", util.FormatSize(int64(res.Size)), res.Size)},
				{"digest", res.Digest.String()},
				{"packets", strconv.Itoa(res.Packets)},
				{"elapsed", res.Elapsed.String()},
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&remoteName, "as", "", "Name to store the file under on the peer")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var (
		size      int
		digestHex string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "download NAME",
		Short: "Fetch a file from the peer and verify it",
		Long: "Fetch a file from the peer. The exact size and SHA-256 digest must be known " +
			"in advance (both are printed by upload); the received bytes are verified " +
			"before anything is written.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digest, err := integrity.ParseHex(digestHex)
			if err != nil {
				return err
			}
			name := args[0]
			if output == "" {
				output = filepath.Base(name)
			}

			var res *transfer.DownloadResult
			err = a.run(cmd.Context(), "Downloading "+name, func(ctx context.Context, c *transfer.Client) error {
				var err error
				res, err = c.Download(ctx, transfer.DownloadRequest{Name: name, Size: size, Digest: digest})
				return err
			})
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, res.Data, 0644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			printSummary(cmd.OutOrStdout(), [][2]string{
				{"downloaded", res.Name},
				{"saved to", output},
				{"size", util.FormatSize(int64(len(res.Data)))},
				{"digest", res.Digest.String() + " (verified)"},
				{"elapsed", res.Elapsed.String()},
			})
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "size", 0, "Exact size of the file in bytes")
	cmd.Flags().StringVar(&digestHex, "digest", "", "Expected SHA-256 digest (hex)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: NAME in the current directory)")
	_ = cmd.MarkFlagRequired("size")
	_ = cmd.MarkFlagRequired("digest")
	return cmd
}

func newRoundTripCmd(a *app) *cobra.Command {
	var remoteName string

	cmd := &cobra.Command{
		Use:   "roundtrip FILE",
		Short: "Upload a file, download it back and verify the copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, data, err := fileInfo.Load(args[0])
			if err != nil {
				return err
			}
			name := remoteName
			if name == "" {
				name = node.Name
			}

			var res *transfer.DownloadResult
			err = a.run(cmd.Context(), "Round trip "+name, func(ctx context.Context, c *transfer.Client) error {
				var err error
				res, err = c.RoundTrip(ctx, name, data)
				return err
			})
			if err != nil {
				return err
			}
			ok, err := node.VerifyData(res.Data)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("round trip of %s: copy does not match %s on disk", name, node.Path)
			}

			printSummary(cmd.OutOrStdout(), [][2]string{
				{"file", name},
				{"size", util.FormatSize(node.Size)},
				{"digest", res.Digest.String()},
				{"result", "verified"},
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&remoteName, "as", "", "Name to store the file under on the peer")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var (
		storeDir    string
		listen      string
		announce    bool
		name        string
		maxFileSize int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer transfer requests and keep files in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := peer.NewDirStore(storeDir, peer.WithStoreLogger(a.logger))
			if err != nil {
				return err
			}
			server := peer.NewServer(store,
				peer.WithLogger(a.logger),
				peer.WithPacketSize(a.cfg.Transfer.PacketSize),
				peer.WithMaxFileSize(maxFileSize),
				peer.WithObserver(a.trace),
			)
			ctx := cmd.Context()

			if listen == "" {
				if announce {
					return fmt.Errorf("--announce requires --listen")
				}
				rw, err := link.Open(ctx, a.cfg.Link)
				if err != nil {
					return err
				}
				defer rw.Close()
				return server.Serve(ctx, rw)
			}

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.ServeListener(ctx, ln)
			})
			if announce {
				port := ln.Addr().(*net.TCPAddr).Port
				g.Go(func() error {
					return (&discovery.MDNSAdapter{}).Announce(ctx, discovery.ServiceInfo{
						Name:   name,
						Type:   discovery.DefaultServiceType,
						Domain: discovery.DefaultDomain,
						Port:   port,
					})
				})
			}
			return g.Wait()
		},
	}

	hostname, _ := os.Hostname()
	cmd.Flags().StringVar(&storeDir, "store", ".", "Directory to keep received files in")
	cmd.Flags().StringVar(&listen, "listen", "", "Serve over TCP on this address instead of the serial device")
	cmd.Flags().BoolVar(&announce, "announce", false, "Announce the TCP listener over mDNS")
	cmd.Flags().StringVar(&name, "name", hostname, "Instance name to announce")
	cmd.Flags().Int64Var(&maxFileSize, "max-file-size", 0, "Reject uploads larger than this many bytes (0 = unlimited)")
	return cmd
}

func printSummary(w io.Writer, rows [][2]string) {
	fmt.Fprint(w, util.KeyValue(rows))
}
