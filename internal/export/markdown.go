package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/chatwire-ai/chatwire/pkg/chat"
)

// Markdown renders the transcript as a readable document: a metadata
// header, one section per message and the side data as a trailing
// appendix. Tool invocations become fenced JSON blocks.
type Markdown struct{}

func (Markdown) Extension() string { return "md" }

func (Markdown) Export(w io.Writer, t *Transcript) error {
	bw := bufio.NewWriter(w)

	title := t.Session.Title
	if title == "" {
		title = t.Session.ID
	}
	if title == "" {
		title = "Conversation"
	}
	fmt.Fprintf(bw, "# %s\n\n", title)

	if t.Session.ID != "" {
		fmt.Fprintf(bw, "- Session: `%s`\n", t.Session.ID)
	}
	if !t.Session.CreatedAt.IsZero() {
		fmt.Fprintf(bw, "- Created: %s\n", t.Session.CreatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(bw, "- Messages: %d\n", len(t.Messages))
	if t.Session.PromptTokens > 0 || t.Session.CompletionTokens > 0 {
		fmt.Fprintf(bw, "- Usage: %d prompt / %d completion tokens\n", t.Session.PromptTokens, t.Session.CompletionTokens)
	}

	for _, m := range t.Messages {
		fmt.Fprintf(bw, "\n## %s\n", roleHeading(m.Role))
		if m.Content != "" {
			fmt.Fprintf(bw, "\n%s\n", m.Content)
		}
		for _, inv := range m.ToolInvocations {
			fmt.Fprintf(bw, "\n**%s** (`%s`)\n", inv.ToolName, inv.ToolCallID)
			if args, err := json.MarshalIndent(inv.Args, "", "  "); err == nil {
				fmt.Fprintf(bw, "\n```json\n%s\n```\n", args)
			}
			if inv.Result != nil {
				fmt.Fprintf(bw, "\nResult:\n\n```json\n%s\n```\n", prettyJSON(inv.Result))
			}
		}
	}

	if len(t.Data) > 0 {
		fmt.Fprintf(bw, "\n## Data\n")
		for _, d := range t.Data {
			fmt.Fprintf(bw, "\n```json\n%s\n```\n", prettyJSON(d))
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("export markdown: %w", err)
	}
	return nil
}

func roleHeading(r chat.Role) string {
	switch r {
	case chat.RoleSystem:
		return "System"
	case chat.RoleUser:
		return "User"
	case chat.RoleAssistant:
		return "Assistant"
	case chat.RoleTool:
		return "Tool"
	default:
		return string(r)
	}
}

// prettyJSON indents raw JSON, falling back to the input bytes when they
// do not parse.
func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
