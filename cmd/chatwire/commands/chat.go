package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatwire-ai/chatwire/internal/config"
	"github.com/chatwire-ai/chatwire/internal/event"
	"github.com/chatwire-ai/chatwire/internal/session"
	"github.com/chatwire-ai/chatwire/internal/storage"
	"github.com/chatwire-ai/chatwire/pkg/chat"
)

var (
	chatEndpoint string
	chatSession  string
	chatContinue bool
	chatMode     string
	chatMaxSteps int
	chatDir      string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session against a chatwire server. Each line
is sent as a user message and the reply streams back as it arrives.
Ctrl-C stops the current reply, Ctrl-D exits.

Commands inside the session:
  /reload  re-request the last reply
  /clear   drop the conversation
  /quit    exit`,
	RunE: runChatLoop,
}

func init() {
	chatCmd.Flags().StringVarP(&chatEndpoint, "endpoint", "e", "", "Chat endpoint URL")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Session ID to continue")
	chatCmd.Flags().BoolVarP(&chatContinue, "continue", "c", false, "Continue the most recent session")
	chatCmd.Flags().StringVar(&chatMode, "mode", "", "Response framing (data|text)")
	chatCmd.Flags().IntVar(&chatMaxSteps, "max-steps", 0, "Automatic tool continuation budget")
	chatCmd.Flags().StringVar(&chatDir, "directory", "", "Working directory")
}

func runChatLoop(cmd *cobra.Command, args []string) error {
	// Determine working directory
	workDir, err := GetWorkDir(chatDir)
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
	if err := validateMode(chatMode); err != nil {
		return err
	}

	ctx := context.Background()

	bus := event.NewBus()
	opts := clientOptions(appConfig, chatEndpoint, chatMode, chatMaxSteps, bus)

	// Open or create the stored session
	st := session.NewStore(storage.New(storageDir(appConfig, paths)), opts)

	var sess *session.Session
	switch {
	case chatSession != "":
		sess, err = st.Acquire(ctx, chatSession)
	case chatContinue:
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

	fmt.Printf("chatwire %s  session %s\n", Version, sess.ID())
	if n := len(sess.Messages()); n > 0 {
		fmt.Printf("continuing with %d messages\n", n)
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var stopped bool
		switch line {
		case "/quit", "/exit":
			return nil
		case "/clear":
			if err := sess.SetMessages(ctx, nil); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				continue
			}
			fmt.Println("conversation cleared")
			continue
		case "/reload":
			stopped, err = withInterrupt(sess, func() error {
				return sess.Reload(ctx)
			})
		default:
			stopped, err = withInterrupt(sess, func() error {
				return sess.Append(ctx, chat.NewUserMessage(line))
			})
		}

		fmt.Println()
		switch {
		case stopped:
			fmt.Println("(stopped)")
		case err != nil:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// withInterrupt runs fn while forwarding the first SIGINT to sess.Stop, so
// Ctrl-C cancels the in-flight reply instead of killing the process. A
// stopped reply is a clean end, not an error, so the stop is reported
// separately.
func withInterrupt(sess *session.Session, fn func() error) (stopped bool, err error) {
	sigCh := make(chan os.Signal, 1)
	done := make(chan struct{})
	stopCh := make(chan struct{}, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		select {
		case <-sigCh:
			sess.Stop()
			stopCh <- struct{}{}
		case <-done:
		}
	}()

	err = fn()

	signal.Stop(sigCh)
	close(done)
	select {
	case <-stopCh:
		stopped = true
	default:
	}
	return stopped, err
}
