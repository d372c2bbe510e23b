package cli

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/streamfile/pkg/streamfile"
	"github.com/calvinalkan/streamfile/pkg/streams"
)

// CatCmd returns the cat command.
func CatCmd(cfg *Config) *Command {
	flags := flag.NewFlagSet("cat", flag.ContinueOnError)
	offset := flags.Int64("offset", 0, "Start reading at byte `N` of each file")
	reuse := flags.Bool("reuse-buffer", false, "Read every chunk into one shared buffer")
	decompress := flags.Bool("zstd", false, "Decompress zstd input")

	return &Command{
		Flags: flags,
		Usage: "cat [flags] <file>...",
		Short: "Write files to stdout",
		Long: `Write each file to stdout, starting at --offset.

The offset applies to the file on disk, so with --zstd it must point at the
start of a zstd frame.`,
		Exec: func(ctx context.Context, o *IO, args []string) error {
			if len(args) == 0 {
				return errFileRequired
			}

			if *offset < 0 {
				return fmt.Errorf("%w: %d", errNegativeOffset, *offset)
			}

			for _, name := range args {
				err := execCat(ctx, o, cfg, cfg.Resolve(name), *offset, *reuse, *decompress)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}

func execCat(ctx context.Context, o *IO, cfg *Config, path string, offset int64, reuse, decompress bool) error {
	withInput := streamfile.WithInputAt[int64]
	if reuse {
		withInput = streamfile.WithInputAtReusingBuffer[int64]
	}

	_, err := withInput(ctx, offset, path, func(in *streams.InputStream[[]byte]) (int64, error) {
		if decompress {
			return decodeZstd(in, o)
		}

		return streams.CopyBytes(in, streams.ToWriter(o))
	}, cfg.Options()...)

	return err
}

// decodeZstd copies the decompressed content of in to w.
func decodeZstd(in *streams.InputStream[[]byte], w *IO) (int64, error) {
	dec, err := zstd.NewReader(streams.AsReader(in), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return 0, fmt.Errorf("zstd: %w", err)
	}
	defer dec.Close()

	n, err := dec.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("zstd: %w", err)
	}

	return n, nil
}
