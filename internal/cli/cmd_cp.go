package cli

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/streamfile/pkg/streamfile"
	"github.com/calvinalkan/streamfile/pkg/streams"
)

type cpOptions struct {
	mode     streamfile.Mode
	buf      streamfile.Buffering
	atomic   bool
	compress bool
}

// CpCmd returns the cp command.
func CpCmd(cfg *Config) *Command {
	flags := flag.NewFlagSet("cp", flag.ContinueOnError)
	mode := flags.String("mode", "write", "Open mode: write, append or readwrite")
	buffering := flags.String("buffering", "", "Output buffering: none, line, block or block:N (default from config)")
	atomic := flags.Bool("atomic", false, "Write to a temp file and rename it over <dst>")
	compress := flags.Bool("zstd", false, "Compress output with zstd")

	return &Command{
		Flags: flags,
		Usage: "cp [flags] <src> <dst>",
		Short: "Copy a file through a scoped stream",
		Long: `Copy <src> to <dst>, streaming chunks from one handle to the other.

Both handles are closed before cp exits. With --atomic, <dst> is replaced only
after the copy is synced; on failure it keeps its previous content.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) != 2 {
				return errSrcDstRequired
			}

			opts := cpOptions{
				buf:      cfg.Buffering,
				atomic:   *atomic,
				compress: *compress,
			}

			var err error

			opts.mode, err = streamfile.ParseMode(*mode)
			if err != nil {
				return err
			}

			if *buffering != "" {
				opts.buf, err = streamfile.ParseBuffering(*buffering)
				if err != nil {
					return err
				}
			}

			if opts.atomic && opts.mode != streamfile.WriteMode {
				return errAtomicMode
			}

			src, dst := cfg.Resolve(args[0]), cfg.Resolve(args[1])

			n, err := execCp(ctx, cfg, src, dst, opts)
			if err != nil {
				return err
			}

			o.Printf("%s -> %s (%d bytes)\n", args[0], args[1], n)

			return nil
		},
	}
}

// execCp nests the output scope inside the input scope, so the destination
// is closed before the source.
func execCp(ctx context.Context, cfg *Config, src, dst string, opts cpOptions) (int64, error) {
	sfOpts := cfg.Options()

	return streamfile.WithInput(ctx, src, func(in *streams.InputStream[[]byte]) (int64, error) {
		write := func(out *streams.OutputStream[[]byte]) (int64, error) {
			if opts.compress {
				return encodeZstd(in, out)
			}

			return streams.CopyBytes(in, out)
		}

		if opts.atomic {
			return streamfile.WithOutputAtomic(ctx, dst, opts.buf, write, sfOpts...)
		}

		return streamfile.WithOutputExt(ctx, dst, opts.mode, opts.buf, write, sfOpts...)
	}, sfOpts...)
}

// encodeZstd compresses in onto out and returns the uncompressed byte count.
func encodeZstd(in *streams.InputStream[[]byte], out *streams.OutputStream[[]byte]) (int64, error) {
	enc, err := zstd.NewWriter(streams.AsWriter(out), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return 0, fmt.Errorf("zstd: %w", err)
	}

	n, err := streams.CopyBytes(in, streams.ToWriter(enc))
	if err != nil {
		_ = enc.Close()

		return n, err
	}

	err = enc.Close()
	if err != nil {
		return n, fmt.Errorf("zstd: %w", err)
	}

	return n, nil
}
