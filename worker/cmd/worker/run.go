package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bgRemover/worker/app"
	"bgRemover/worker/config"
	"bgRemover/worker/export"
	"bgRemover/worker/ingest"
	"bgRemover/worker/session"
)

type runOptions struct {
	archive string
	outDir  string
}

func newRunCommand(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <image>...",
		Short: "Process images and export the results",
		Long: `Process every given PNG or JPEG through the background remover one at a time,
then write the results as a zip archive (--archive) or as individual files (--out).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.archive == "" && opts.outDir == "" {
				opts.archive = "."
			}
			return runBatch(cmd.Context(), cmd.OutOrStdout(), global, opts, args)
		},
	}
	cmd.Flags().StringVar(&opts.archive, "archive", "", "write a zip archive into this directory")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "write each processed image into this directory")
	return cmd
}

func runBatch(ctx context.Context, out io.Writer, global *globalOptions, opts *runOptions, paths []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if global.remover != "" {
		cfg.Remover = global.remover
	}
	if global.device != "" {
		cfg.RemoverDevice = global.device
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	sess, cleanup, err := app.NewSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sess.Start(ctx)
	defer sess.Close()

	files, err := filesFromPaths(paths)
	if err != nil {
		return err
	}

	items, err := sess.Ingest(ctx, files)
	if err != nil {
		return err
	}
	if skipped := len(files) - len(items); skipped > 0 {
		logger.Warn("Some files were not accepted", zap.Int("skipped", skipped))
	}

	if err := sess.WaitIdle(ctx); err != nil {
		return err
	}

	renderItems(out, sess.Items())

	if opts.outDir != "" {
		if err := writeEach(sess, opts.outDir); err != nil {
			return err
		}
	}
	if opts.archive != "" {
		if err := writeArchive(out, sess, opts.archive); err != nil {
			return err
		}
	}
	return nil
}

func filesFromPaths(paths []string) ([]ingest.File, error) {
	files := make([]ingest.File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			continue
		}
		path := p
		files = append(files, ingest.File{
			Name:    filepath.Base(path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Open: func() (io.ReadCloser, error) {
				return os.Open(path)
			},
		})
	}
	return files, nil
}

func writeEach(sess *session.Session, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	used := map[string]int{}
	for _, it := range sess.Items() {
		if !it.HasResult() {
			continue
		}
		name := export.FileName(it.DisplayName)
		used[name]++
		if n := used[name]; n > 1 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s-%d%s", name[:len(name)-len(ext)], n, ext)
		}

		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		_, err = sess.ExportOne(f, it.ID)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func writeArchive(out io.Writer, sess *session.Session, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".archive-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	name, summary, err := sess.ExportArchive(tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, export.ErrEmptyArchive) {
		fmt.Fprintln(out, "No processed images available for download")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create zip file: %w", err)
	}

	dest := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s (%d images)\n", dest, len(summary.Entries))
	return nil
}
