package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/cobra"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/event"
	"github.com/chatwire-ai/chatwire/internal/logging"
	"github.com/chatwire-ai/chatwire/internal/session"
	"github.com/chatwire-ai/chatwire/internal/storage"
	"github.com/chatwire-ai/chatwire/pkg/chat"
)

var (
	runEndpoint string
	runSession  string
	runContinue bool
	runMode     string
	runMaxSteps int
	runRetries  int
	runFiles    []string
	runDir      string
)

var runCmd = &cobra.Command{
	Use:   "run [message...]",
	Short: "Send one message and stream the reply",
	Long: `Send a single message to a chatwire server and stream the assistant
reply to stdout. The conversation is stored locally so it can be
continued or exported later.

Examples:
  chatwire run "what time is it in Tokyo?"
  chatwire run --continue "and in Sydney?"
  chatwire run --file chart.png "describe this image"`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().StringVarP(&runEndpoint, "endpoint", "e", "", "Chat endpoint URL")
	runCmd.Flags().StringVarP(&runSession, "session", "s", "", "Session ID to continue")
	runCmd.Flags().BoolVarP(&runContinue, "continue", "c", false, "Continue the most recent session")
	runCmd.Flags().StringVar(&runMode, "mode", "", "Response framing (data|text)")
	runCmd.Flags().IntVar(&runMaxSteps, "max-steps", 0, "Automatic tool continuation budget")
	runCmd.Flags().IntVar(&runRetries, "retries", 2, "Retries for failed round trips")
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "File(s) to attach to the message")
	runCmd.Flags().StringVar(&runDir, "directory", "", "Working directory")
}

func runOnce(cmd *cobra.Command, args []string) error {
	// Determine working directory
	workDir, err := GetWorkDir(runDir)
	if err != nil {
		return err
	}

	// Initialize paths
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	// Load configuration
	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if err := validateMode(runMode); err != nil {
		return err
	}

	// Build message from args
	message := strings.Join(args, " ")
	if message == "" {
		return fmt.Errorf("message required. Usage: chatwire run \"your message\"")
	}

	attachments, err := readAttachments(runFiles)
	if err != nil {
		return err
	}

	ctx := context.Background()

	bus := event.NewBus()
	opts := clientOptions(appConfig, runEndpoint, runMode, runMaxSteps, bus)
	if runRetries > 0 {
		// Retries re-issue the failed turn via Reload, which needs the
		// optimistic append to survive the failure.
		opts.KeepLastMessageOnError = true
	}

	// Open or create the stored session
	st := session.NewStore(storage.New(storageDir(appConfig, paths)), opts)

	var sess *session.Session
	switch {
	case runSession != "":
		sess, err = st.Acquire(ctx, runSession)
	case runContinue:
		var infos []session.Info
		infos, err = st.List(ctx)
		if err == nil {
			if len(infos) == 0 {
				return errors.New("no sessions to continue")
			}
			sess, err = st.Acquire(ctx, infos[0].ID)
		}
	default:
		sess, err = st.Create(ctx)
	}
	if err != nil {
		return err
	}
	defer st.Release(sess.ID())

	unsubscribe := bus.Subscribe(event.MessagesUpdated, newStreamPrinter(os.Stdout))
	defer unsubscribe()

	err = sess.Append(ctx, chat.NewUserMessage(message, attachments...))
	if err != nil && runRetries > 0 {
		err = retryReload(ctx, sess, err, runRetries)
	}
	fmt.Println()
	if err != nil {
		return err
	}

	usage := sess.Usage()
	logging.Debug().
		Str("session", sess.ID()).
		Int("promptTokens", usage.PromptTokens).
		Int("completionTokens", usage.CompletionTokens).
		Msg("turn complete")
	return nil
}

// retryReload re-issues the failed turn with exponential backoff. Only
// transport failures are retried; protocol errors and aborts are final.
func retryReload(ctx context.Context, sess *session.Session, err error, retries int) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	for attempt := 1; attempt <= retries; attempt++ {
		if !retryableTransport(err) {
			return err
		}
		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		fmt.Fprintf(os.Stderr, "request failed (%v), retrying in %s\n", err, wait.Round(time.Millisecond))
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
		err = sess.Reload(ctx)
		if err == nil {
			return nil
		}
	}
	return err
}

// retryableTransport reports whether err is a round-trip failure worth
// re-issuing: no response arrived, a 5xx, or a 429.
func retryableTransport(err error) bool {
	if chat.IsAbort(err) {
		return false
	}
	var terr *chat.TransportError
	if !errors.As(err, &terr) {
		return false
	}
	return terr.Status == 0 || terr.Status >= 500 || terr.Status == http.StatusTooManyRequests
}

// readAttachments loads files as data URLs, the way browser clients attach
// them to a message.
func readAttachments(paths []string) ([]chat.Attachment, error) {
	var attachments []chat.Attachment
	for _, p := range paths {
		att, err := chat.ResolveAttachment(p)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}
