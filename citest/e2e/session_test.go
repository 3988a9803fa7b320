package e2e_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chatwire-ai/chatwire/citest/testutil"
	"github.com/chatwire-ai/chatwire/internal/clienttool"
	"github.com/chatwire-ai/chatwire/internal/event"
	"github.com/chatwire-ai/chatwire/internal/runner"
	"github.com/chatwire-ai/chatwire/internal/session"
	"github.com/chatwire-ai/chatwire/internal/storage"
	"github.com/chatwire-ai/chatwire/pkg/chat"
	"github.com/chatwire-ai/chatwire/pkg/wire"
)

var _ = Describe("Session Workflows", func() {
	var tempDir *testutil.TempDir
	var store *session.Store

	BeforeEach(func() {
		var err error
		tempDir, err = testutil.NewTempDir()
		Expect(err).NotTo(HaveOccurred())
		store = session.NewStore(storage.New(tempDir.Path), sessionOptions())
	})

	AfterEach(func() {
		if tempDir != nil {
			tempDir.Cleanup()
		}
	})

	Describe("Simple Exchange", func() {
		It("should append a user turn and accumulate the streamed reply", func() {
			sess, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer store.Release(sess.ID())

			err = sess.Append(ctx, chat.NewUserMessage("hello session"))
			Expect(err).NotTo(HaveOccurred())

			msgs := sess.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Role).To(Equal(chat.RoleUser))
			Expect(msgs[0].Content).To(Equal("hello session"))
			Expect(msgs[1].Role).To(Equal(chat.RoleAssistant))
			Expect(msgs[1].Content).To(Equal("Hello there! How can I help?"))
			Expect(msgs[1].ID).NotTo(BeEmpty())

			Expect(sess.Err()).NotTo(HaveOccurred())
			Expect(sess.IsLoading()).To(BeFalse())

			fin := sess.Finish()
			Expect(fin).NotTo(BeNil())
			Expect(fin.Reason).To(Equal(wire.FinishStop))

			usage := sess.Usage()
			Expect(usage.PromptTokens).To(BeNumerically(">", 0))
			Expect(usage.CompletionTokens).To(BeNumerically(">", 0))
		})

		It("should maintain conversation history across turns", func() {
			sess, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer store.Release(sess.ID())

			Expect(sess.Append(ctx, chat.NewUserMessage("hello first"))).To(Succeed())
			Expect(sess.Append(ctx, chat.NewUserMessage("hello second"))).To(Succeed())

			msgs := sess.Messages()
			Expect(msgs).To(HaveLen(4))
			Expect(msgs[0].Content).To(Equal("hello first"))
			Expect(msgs[2].Content).To(Equal("hello second"))
			Expect(msgs[1].Role).To(Equal(chat.RoleAssistant))
			Expect(msgs[3].Role).To(Equal(chat.RoleAssistant))
		})

		It("should reload the last turn with a fresh reply", func() {
			sess, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer store.Release(sess.ID())

			Expect(sess.Append(ctx, chat.NewUserMessage("hello reload"))).To(Succeed())
			firstReplyID := sess.Messages()[1].ID

			Expect(sess.Reload(ctx)).To(Succeed())

			msgs := sess.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].Content).To(Equal("Hello there! How can I help?"))
			Expect(msgs[1].ID).NotTo(Equal(firstReplyID))
		})

		It("should replace the conversation without a request on SetMessages", func() {
			sess, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer store.Release(sess.ID())

			Expect(sess.Append(ctx, chat.NewUserMessage("hello setup"))).To(Succeed())
			Expect(sess.Messages()).To(HaveLen(2))

			Expect(sess.SetMessages(ctx, nil)).To(Succeed())
			Expect(sess.Messages()).To(BeEmpty())
		})
	})

	Describe("Tool Rounds", func() {
		It("should record the invocation and start a fresh message for the reply", func() {
			sess, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer store.Release(sess.ID())

			Expect(sess.Append(ctx, chat.NewUserMessage("what is the weather like"))).To(Succeed())

			msgs := sess.Messages()
			Expect(msgs).To(HaveLen(3))

			invMsg := msgs[1]
			Expect(invMsg.Role).To(Equal(chat.RoleAssistant))
			Expect(invMsg.ToolInvocations).To(HaveLen(1))
			Expect(invMsg.Ready()).To(BeTrue())

			inv := invMsg.ToolInvocations[0]
			Expect(inv.ToolCallID).To(Equal("call_weather_001"))
			Expect(inv.ToolName).To(Equal("weather"))
			Expect(inv.Complete()).To(BeTrue())

			args, err := json.Marshal(inv.Args)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(args)).To(MatchJSON(`{"city":"Berlin","unit":"celsius"}`))
			Expect(string(inv.Result)).To(MatchJSON(`{"temperature":18,"sky":"overcast"}`))

			reply := msgs[2]
			Expect(reply.Role).To(Equal(chat.RoleAssistant))
			Expect(reply.ID).NotTo(Equal(invMsg.ID))
			Expect(reply.Content).To(Equal("It is 18 degrees and overcast in Berlin."))
			Expect(reply.ToolInvocations).To(BeEmpty())
		})
	})

	Describe("Side Data", func() {
		It("should accumulate data values and attach annotations to the reply", func() {
			sess, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			defer store.Release(sess.ID())

			Expect(sess.Append(ctx, chat.NewUserMessage("hello data"))).To(Succeed())
			Expect(sess.SideData()).To(BeEmpty())

			Expect(sess.Append(ctx, chat.NewUserMessage("draw a chart for me"))).To(Succeed())

			side := sess.SideData()
			Expect(side).To(HaveLen(2))
			Expect(string(side[0])).To(MatchJSON(`{"series":"visits","points":[1,2,3]}`))
			Expect(string(side[1])).To(MatchJSON(`{"series":"errors","points":[0,0,1]}`))

			msgs := sess.Messages()
			Expect(msgs).To(HaveLen(4))
			Expect(msgs[3].Annotations).To(HaveLen(1))
			Expect(string(msgs[3].Annotations[0])).To(MatchJSON(`{"source":"scripted"}`))
		})
	})

	Describe("Persistence", func() {
		It("should restore a conversation after the store is reopened", func() {
			sess, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			id := sess.ID()

			Expect(sess.Append(ctx, chat.NewUserMessage("hello persistence"))).To(Succeed())
			store.Release(id)

			reopened := session.NewStore(storage.New(tempDir.Path), sessionOptions())
			restored, err := reopened.Acquire(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Release(id)

			msgs := restored.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0].Content).To(Equal("hello persistence"))
			Expect(msgs[1].Content).To(Equal("Hello there! How can I help?"))
			Expect(restored.Usage().PromptTokens).To(BeNumerically(">", 0))

			info, err := reopened.Get(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Title).To(Equal("hello persistence"))
			Expect(info.MessageCount).To(Equal(2))
		})

		It("should list sessions most recently updated first", func() {
			first, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Append(ctx, chat.NewUserMessage("hello alpha"))).To(Succeed())
			store.Release(first.ID())

			second, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Append(ctx, chat.NewUserMessage("hello beta"))).To(Succeed())
			store.Release(second.ID())

			infos, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(HaveLen(2))
			Expect(infos[0].ID).To(Equal(second.ID()))
			Expect(infos[0].Title).To(Equal("hello beta"))
			Expect(infos[1].Title).To(Equal("hello alpha"))
			Expect(infos[0].MessageCount).To(Equal(2))
		})

		It("should delete a session and its stored state", func() {
			sess, err := store.Create(ctx)
			Expect(err).NotTo(HaveOccurred())
			id := sess.ID()
			Expect(sess.Append(ctx, chat.NewUserMessage("hello doomed"))).To(Succeed())
			store.Release(id)

			Expect(store.Delete(ctx, id)).To(Succeed())

			infos, err := store.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(infos).To(BeEmpty())

			_, err = store.Get(ctx, id)
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Transport Failures", func() {
	It("should roll back the optimistic append when the request fails", func() {
		bus := event.NewBus()
		var reported []string
		unsub := bus.Subscribe(event.SessionError, func(e event.Event) {
			if d, ok := e.Data.(event.SessionErrorData); ok {
				reported = append(reported, d.Message)
			}
		})
		defer unsub()

		sess := session.New("", session.Options{
			Transport: &chat.HTTPTransport{URL: testServer.BaseURL + "/v1/nope"},
			Throttle:  -1,
			Bus:       bus,
		})

		err := sess.Append(ctx, chat.NewUserMessage("hello failure"))
		Expect(err).To(HaveOccurred())

		var terr *chat.TransportError
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(terr.Status).To(Equal(http.StatusNotFound))

		Expect(sess.Messages()).To(BeEmpty())
		Expect(sess.Err()).To(HaveOccurred())
		Expect(reported).To(HaveLen(1))
	})

	It("should keep the user message when configured to", func() {
		sess := session.New("", session.Options{
			Transport:              &chat.HTTPTransport{URL: testServer.BaseURL + "/v1/nope"},
			Throttle:               -1,
			KeepLastMessageOnError: true,
			Bus:                    event.NewBus(),
		})

		err := sess.Append(ctx, chat.NewUserMessage("hello survivor"))
		Expect(err).To(HaveOccurred())

		msgs := sess.Messages()
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Role).To(Equal(chat.RoleUser))
		Expect(msgs[0].Content).To(Equal("hello survivor"))
	})

	It("should surface connection failures without a status", func() {
		sess := session.New("", session.Options{
			Transport: &chat.HTTPTransport{URL: "http://127.0.0.1:1/v1/chat"},
			Throttle:  -1,
			Bus:       event.NewBus(),
		})

		err := sess.Append(ctx, chat.NewUserMessage("hello nobody"))
		Expect(err).To(HaveOccurred())

		var terr *chat.TransportError
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(terr.Status).To(BeZero())
	})
})

var _ = Describe("Interrupting a Reply", func() {
	It("should stop the stream cleanly and keep the partial text", func() {
		delay := 20
		longReply := strings.Repeat("the reply keeps going on and on. ", 60)
		paced, err := testutil.StartTestServer(testutil.WithScript(&runner.Script{
			Settings: runner.ScriptSettings{ChunkDelayMS: &delay},
			Defaults: runner.ScriptDefaults{Fallback: longReply},
		}))
		Expect(err).NotTo(HaveOccurred())
		defer paced.Stop()

		sess := session.New("", session.Options{
			Transport: paced.Transport(),
			Throttle:  -1,
			Bus:       event.NewBus(),
		})

		errCh := make(chan error, 1)
		go func() {
			errCh <- sess.Append(ctx, chat.NewUserMessage("stream slowly"))
		}()

		Eventually(func() string {
			msgs := sess.Messages()
			if len(msgs) < 2 {
				return ""
			}
			return msgs[1].Content
		}, 5*time.Second, 10*time.Millisecond).ShouldNot(BeEmpty())

		sess.Stop()

		var appendErr error
		Eventually(errCh, 5*time.Second).Should(Receive(&appendErr))
		Expect(appendErr).NotTo(HaveOccurred())
		Expect(sess.Err()).NotTo(HaveOccurred())

		msgs := sess.Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Role).To(Equal(chat.RoleAssistant))
		Expect(msgs[1].Content).NotTo(BeEmpty())
		Expect(len(msgs[1].Content)).To(BeNumerically("<", len(longReply)))
	})
})

var _ = Describe("Plain Text Sessions", func() {
	It("should treat the body as one running reply", func() {
		sess := session.New("", session.Options{
			Transport: testServer.Transport(),
			Throttle:  -1,
			PlainText: true,
			Extra:     map[string]any{"mode": "text"},
			Bus:       event.NewBus(),
		})

		Expect(sess.Append(ctx, chat.NewUserMessage("hello plain"))).To(Succeed())

		msgs := sess.Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Role).To(Equal(chat.RoleAssistant))
		Expect(msgs[1].Content).To(Equal("Hello there! How can I help?"))

		// No framing means no finish info and no side channel.
		Expect(sess.Finish()).To(BeNil())
		Expect(sess.SideData()).To(BeEmpty())
	})
})

var _ = Describe("Client Tools", func() {
	It("should execute a client-owned call locally and stream the follow-up reply", func() {
		var gotArgs json.RawMessage
		reg := clienttool.NewRegistry()
		Expect(reg.RegisterFunc("lookup", func(_ context.Context, args json.RawMessage) (any, error) {
			gotArgs = args
			return map[string]any{"summary": "a fine language"}, nil
		})).To(Succeed())

		sess := session.New("", session.Options{
			Transport:   testServer.Transport(),
			Throttle:    -1,
			MaxSteps:    4,
			ClientTools: reg,
			Bus:         event.NewBus(),
		})

		Expect(sess.Append(ctx, chat.NewUserMessage("lookup go for me"))).To(Succeed())
		Expect(sess.Err()).NotTo(HaveOccurred())

		Expect(string(gotArgs)).To(MatchJSON(`{"topic":"go"}`))

		msgs := sess.Messages()
		Expect(msgs).To(HaveLen(3))

		invMsg := msgs[1]
		Expect(invMsg.Role).To(Equal(chat.RoleAssistant))
		Expect(invMsg.ToolInvocations).To(HaveLen(1))
		inv := invMsg.ToolInvocations[0]
		Expect(inv.ToolName).To(Equal("lookup"))
		Expect(inv.Complete()).To(BeTrue())
		Expect(string(inv.Result)).To(MatchJSON(`{"summary":"a fine language"}`))

		Expect(msgs[2].Content).To(Equal("The lookup says Go is great."))
	})

	It("should leave the call pending when no handler is registered", func() {
		sess := session.New("", session.Options{
			Transport:   testServer.Transport(),
			Throttle:    -1,
			MaxSteps:    4,
			ClientTools: clienttool.NewRegistry(),
			Bus:         event.NewBus(),
		})

		Expect(sess.Append(ctx, chat.NewUserMessage("lookup go for me"))).To(Succeed())

		msgs := sess.Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].ToolInvocations).To(HaveLen(1))
		Expect(msgs[1].ToolInvocations[0].Complete()).To(BeFalse())
	})
})

var _ = Describe("Session Events", func() {
	It("should publish snapshots, loading transitions, and a final idle", func() {
		bus := event.NewBus()
		sess := session.New("", session.Options{
			Transport: testServer.Transport(),
			Throttle:  -1,
			Bus:       bus,
		})

		var snapshots, idle int
		var loading []bool
		unsubMsgs := bus.Subscribe(event.MessagesUpdated, func(e event.Event) { snapshots++ })
		defer unsubMsgs()
		unsubLoad := bus.Subscribe(event.LoadingChanged, func(e event.Event) {
			if d, ok := e.Data.(event.LoadingChangedData); ok {
				loading = append(loading, d.Loading)
			}
		})
		defer unsubLoad()
		unsubIdle := bus.Subscribe(event.SessionIdle, func(e event.Event) { idle++ })
		defer unsubIdle()

		Expect(sess.Append(ctx, chat.NewUserMessage("hello events"))).To(Succeed())

		Expect(snapshots).To(BeNumerically(">", 1))
		Expect(loading).To(Equal([]bool{true, false}))
		Expect(idle).To(Equal(1))
	})

	It("should report each finished step", func() {
		bus := event.NewBus()
		sess := session.New("", session.Options{
			Transport: testServer.Transport(),
			Throttle:  -1,
			Bus:       bus,
		})

		var steps []event.StepFinishedData
		unsub := bus.Subscribe(event.StepFinished, func(e event.Event) {
			if d, ok := e.Data.(event.StepFinishedData); ok {
				steps = append(steps, d)
			}
		})
		defer unsub()

		Expect(sess.Append(ctx, chat.NewUserMessage("weather step check"))).To(Succeed())

		Expect(steps).To(HaveLen(1))
		Expect(steps[0].Step).To(Equal(1))
		Expect(steps[0].Finish).NotTo(BeNil())
		Expect(steps[0].Finish.Reason).To(Equal(wire.FinishStop))
	})
})

// sessionOptions returns client options aimed at the shared test server,
// unthrottled so specs run at full speed.
func sessionOptions() session.Options {
	return session.Options{
		Transport: testServer.Transport(),
		Throttle:  -1,
		Bus:       event.NewBus(),
	}
}
