package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/session"
	"github.com/chatwire-ai/chatwire/internal/storage"
)

var sessionsDir string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	Long: `List stored sessions, most recently used first.

Examples:
  chatwire sessions
  chatwire sessions delete 01J5X0M9W8`,
	RunE: runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsDir, "directory", "", "Working directory")
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

func openSessionStore() (*session.Store, error) {
	workDir, err := GetWorkDir(sessionsDir)
	if err != nil {
		return nil, err
	}

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}

	return session.NewStore(storage.New(storageDir(appConfig, paths)), session.Options{}), nil
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openSessionStore()
	if err != nil {
		return err
	}

	infos, err := st.List(context.Background())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Println("No stored sessions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tTOKENS\tUPDATED\t")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%s\t\n",
			info.ID,
			truncate(info.Title, 40),
			info.MessageCount,
			info.PromptTokens,
			info.CompletionTokens,
			info.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	return w.Flush()
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	st, err := openSessionStore()
	if err != nil {
		return err
	}

	if err := st.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", args[0])
	return nil
}
