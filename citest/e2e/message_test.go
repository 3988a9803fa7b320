package e2e_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chatwire-ai/chatwire/citest/testutil"
	"github.com/chatwire-ai/chatwire/internal/server"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

var _ = Describe("Chat Streaming Protocol", func() {
	Describe("Data Mode", func() {
		It("should stream the reply as text deltas with a single finish", func() {
			rec, _, err := client.Chat(ctx, promptPayload("hello server", nil))
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.TextContent()).To(Equal("Hello there! How can I help?"))
			Expect(rec.CountType(wire.ChunkTextDelta)).To(BeNumerically(">", 1))
			Expect(rec.Errors()).To(BeEmpty())

			fin, ok := rec.Finish()
			Expect(ok).To(BeTrue())
			Expect(fin.Reason).To(Equal(wire.FinishStop))
			Expect(fin.Usage.PromptTokens).To(BeNumerically(">", 0))
			Expect(fin.Usage.CompletionTokens).To(BeNumerically(">", 0))
		})

		It("should advertise the stream version on the response", func() {
			rec, resp, err := client.Chat(ctx, promptPayload("hello again", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.TextContent()).NotTo(BeEmpty())

			Expect(resp.Header.Get(server.StreamVersionHeader)).To(Equal(server.StreamVersion))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/plain; charset=utf-8"))
			Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		})

		It("should emit the finish event last", func() {
			rec, _, err := client.Chat(ctx, promptPayload("hello once more", nil))
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.CountType(wire.ChunkFinish)).To(Equal(1))
			last := rec.Chunks[len(rec.Chunks)-1]
			Expect(last.Type()).To(Equal(wire.ChunkFinish))
		})

		It("should replay a complete tool round before the reply", func() {
			rec, _, err := client.Chat(ctx, promptPayload("what is the weather like", nil))
			Expect(err).NotTo(HaveOccurred())

			calls := rec.ToolCalls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].ToolCallID).To(Equal("call_weather_001"))
			Expect(calls[0].ToolName).To(Equal("weather"))
			Expect(string(calls[0].Args)).To(MatchJSON(`{"city":"Berlin","unit":"celsius"}`))

			// Argument deltas reassemble into the call's argument text.
			Expect(rec.CountType(wire.ChunkToolCallDelta)).To(BeNumerically(">", 1))
			Expect(rec.ArgsText("call_weather_001")).To(Equal(`{"city":"Berlin","unit":"celsius"}`))

			results := rec.ToolResults()
			Expect(results).To(HaveLen(1))
			Expect(results[0].ToolCallID).To(Equal("call_weather_001"))
			Expect(string(results[0].Result)).To(MatchJSON(`{"temperature":18,"sky":"overcast"}`))

			steps := rec.StepFinishes()
			Expect(steps).To(HaveLen(1))
			Expect(steps[0].Reason).To(Equal(wire.FinishToolCalls))
			Expect(steps[0].IsContinued).To(BeTrue())

			Expect(rec.TextContent()).To(Equal("It is 18 degrees and overcast in Berlin."))
			fin, ok := rec.Finish()
			Expect(ok).To(BeTrue())
			Expect(fin.Reason).To(Equal(wire.FinishStop))
		})

		It("should name the tool on the first argument delta only", func() {
			rec, _, err := client.Chat(ctx, promptPayload("weather please", nil))
			Expect(err).NotTo(HaveOccurred())

			var deltas []wire.ToolCallDelta
			for _, c := range rec.Chunks {
				if d, ok := c.(wire.ToolCallDelta); ok {
					deltas = append(deltas, d)
				}
			}
			Expect(len(deltas)).To(BeNumerically(">", 1))
			Expect(deltas[0].ToolName).To(Equal("weather"))
			for _, d := range deltas[1:] {
				Expect(d.ToolName).To(BeEmpty())
				Expect(d.ToolCallID).To(Equal("call_weather_001"))
			}
		})

		It("should order the tool round as deltas, call, result, step finish, reply", func() {
			rec, _, err := client.Chat(ctx, promptPayload("weather again", nil))
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.IndexOf(wire.ChunkToolCallDelta)).To(BeNumerically("<", rec.IndexOf(wire.ChunkToolCall)))
			Expect(rec.IndexOf(wire.ChunkToolCall)).To(BeNumerically("<", rec.IndexOf(wire.ChunkToolResult)))
			Expect(rec.IndexOf(wire.ChunkToolResult)).To(BeNumerically("<", rec.IndexOf(wire.ChunkStepFinish)))
			Expect(rec.IndexOf(wire.ChunkStepFinish)).To(BeNumerically("<", rec.IndexOf(wire.ChunkTextDelta)))
			Expect(rec.CountType(wire.ChunkFinish)).To(Equal(1))
		})

		It("should deliver side data before the reply and annotations after it", func() {
			rec, _, err := client.Chat(ctx, promptPayload("show me a chart", nil))
			Expect(err).NotTo(HaveOccurred())

			values := rec.DataValues()
			Expect(values).To(HaveLen(2))
			Expect(string(values[0])).To(MatchJSON(`{"series":"visits","points":[1,2,3]}`))
			Expect(string(values[1])).To(MatchJSON(`{"series":"errors","points":[0,0,1]}`))

			annotations := rec.Annotations()
			Expect(annotations).To(HaveLen(1))
			Expect(string(annotations[0])).To(MatchJSON(`{"source":"scripted"}`))

			Expect(rec.IndexOf(wire.ChunkData)).To(BeNumerically("<", rec.IndexOf(wire.ChunkTextDelta)))
			Expect(rec.IndexOf(wire.ChunkAnnotation)).To(BeNumerically(">", rec.IndexOf(wire.ChunkTextDelta)))
			Expect(rec.TextContent()).To(Equal("Here is the chart."))
		})

		It("should fall back when no rule matches", func() {
			rec, _, err := client.Chat(ctx, promptPayload("tell me about quasars", nil))
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.TextContent()).To(Equal("No scripted answer."))
			fin, ok := rec.Finish()
			Expect(ok).To(BeTrue())
			Expect(fin.Reason).To(Equal(wire.FinishStop))
		})
	})

	Describe("Text Mode", func() {
		It("should stream only the raw reply text", func() {
			resp, err := client.StreamChat(ctx, promptPayload("hello text mode", map[string]any{"mode": "text"}))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get(server.StreamVersionHeader)).To(BeEmpty())

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("Hello there! How can I help?"))
		})

		It("should accept the mode as a query parameter", func() {
			resp, err := client.StreamChat(ctx, promptPayload("hello query mode", nil), testutil.WithQuery(map[string]string{"mode": "text"}))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("Hello there! How can I help?"))
		})
	})

	Describe("Request Validation", func() {
		It("should reject an empty message list", func() {
			resp, err := client.Post(ctx, "/v1/chat", map[string]any{"messages": []any{}})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var envelope errorEnvelope
			Expect(resp.JSON(&envelope)).To(Succeed())
			Expect(envelope.Error.Code).To(Equal("INVALID_REQUEST"))
			Expect(envelope.Error.Message).To(ContainSubstring("messages"))
		})

		It("should reject a malformed body", func() {
			resp, err := http.Post(testServer.ChatURL, "application/json", strings.NewReader(`{"messages": [`))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("should reject an unknown mode before streaming", func() {
			resp, err := client.Post(ctx, "/v1/chat", promptPayload("ping", map[string]any{"mode": "sse"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(resp.Headers.Get(server.StreamVersionHeader)).To(BeEmpty())

			var envelope errorEnvelope
			Expect(resp.JSON(&envelope)).To(Succeed())
			Expect(envelope.Error.Code).To(Equal("INVALID_REQUEST"))
			Expect(envelope.Error.Message).To(ContainSubstring("unknown mode"))
		})
	})
})

var _ = Describe("Service Endpoints", func() {
	It("should report healthy", func() {
		resp, err := client.Get(ctx, "/health")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.String()).To(MatchJSON(`{"status":"ok"}`))
	})

	It("should list the built-in tools", func() {
		resp, err := client.Get(ctx, "/v1/tools")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var body struct {
			Tools []struct {
				Name        string          `json:"name"`
				Description string          `json:"description"`
				Parameters  json.RawMessage `json:"parameters"`
			} `json:"tools"`
		}
		Expect(resp.JSON(&body)).To(Succeed())

		names := make([]string, 0, len(body.Tools))
		for _, t := range body.Tools {
			Expect(t.Description).NotTo(BeEmpty())
			names = append(names, t.Name)
		}
		Expect(names).To(ContainElements("time", "webfetch"))
	})

	It("should list no models when no provider is configured", func() {
		resp, err := client.Get(ctx, "/v1/models")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.String()).To(MatchJSON(`{"models":[]}`))
	})

	It("should report no MCP servers", func() {
		resp, err := client.Get(ctx, "/v1/mcp")
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.String()).To(MatchJSON(`{}`))
	})
})

// errorEnvelope matches the server's JSON error responses.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// promptPayload builds a one-message request body.
func promptPayload(text string, extra map[string]any) *chat.RequestPayload {
	return &chat.RequestPayload{
		Messages: []*chat.Message{chat.NewUserMessage(text)},
		Extra:    extra,
	}
}
