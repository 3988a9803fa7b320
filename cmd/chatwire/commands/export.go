package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/export"
	"github.com/chatwire-ai/chatwire/internal/session"
	"github.com/chatwire-ai/chatwire/internal/storage"
)

var (
	exportFormat string
	exportOutput string
	exportDir    string
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a stored session",
	Long: `Export a stored session transcript as JSON, JSON Lines, Markdown,
or YAML.

Examples:
  chatwire export 01J5X0M9W8 --format markdown
  chatwire export 01J5X0M9W8 -f jsonl -o transcripts/`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Export format (json|jsonl|markdown|yaml)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file or directory (default stdout)")
	exportCmd.Flags().StringVar(&exportDir, "directory", "", "Working directory")
}

func runExport(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(exportDir)
	if err != nil {
		return err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}

	exporter, err := export.DefaultRegistry().Get(exportFormat)
	if err != nil {
		return err
	}

	ctx := context.Background()
	st := session.NewStore(storage.New(storageDir(appConfig, paths)), session.Options{})

	info, err := st.Get(ctx, args[0])
	if err != nil {
		return err
	}
	sess, err := st.Acquire(ctx, args[0])
	if err != nil {
		return err
	}
	defer st.Release(sess.ID())

	transcript := &export.Transcript{
		Session:  info,
		Messages: sess.Messages(),
		Data:     sess.SideData(),
	}

	if exportOutput == "" || exportOutput == "-" {
		return exporter.Export(os.Stdout, transcript)
	}

	path := exportOutput
	if fi, statErr := os.Stat(path); statErr == nil && fi.IsDir() {
		path = filepath.Join(path, info.ID+"."+exporter.Extension())
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exporter.Export(f, transcript); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Printf("Exported session %s to %s\n", info.ID, path)
	return nil
}
