package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/logger"
	testutils "github.com/papercomputeco/spool/pkg/utils/test"
)

var _ = Describe("Store tool", func() {
	var (
		server   *Server
		store    *testutils.MockDriver
		embedder *testutils.MockEmbedder
		ctx      context.Context
	)

	BeforeEach(func() {
		store = testutils.NewMockDriver()
		embedder = testutils.NewMockEmbedder()
		server = &Server{config: Config{
			Store:    store,
			Embedder: embedder,
			Logger:   logger.Nop(),
		}}
		ctx = context.Background()
	})

	It("rejects empty content", func() {
		result, output, err := server.handleStore(ctx, nil, StoreInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
		Expect(output.ID).To(BeEmpty())
	})

	It("embeds and inserts the content with a generated id", func() {
		result, output, err := server.handleStore(ctx, nil, StoreInput{Content: "remember this"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())

		Expect(output.ID).NotTo(BeEmpty())
		Expect(embedder.Texts).To(Equal([]string{"remember this"}))
		Expect(store.Inserted).To(HaveLen(1))
		Expect(store.Inserted[0].ID).To(Equal(output.ID))
		Expect(store.Inserted[0].Vector).To(Equal([]float32{0.1, 0.2, 0.3}))
		Expect(store.Inserted[0].Payload).To(HaveKeyWithValue("text", "remember this"))
	})

	It("uses a caller-assigned id", func() {
		_, output, err := server.handleStore(ctx, nil, StoreInput{
			Content: "remember this",
			ID:      "rec-1",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(output.ID).To(Equal("rec-1"))
		Expect(store.Inserted[0].ID).To(Equal("rec-1"))
	})

	It("merges the content into a caller payload", func() {
		_, _, err := server.handleStore(ctx, nil, StoreInput{
			Content: "remember this",
			Payload: map[string]any{"kind": "note"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Inserted[0].Payload).To(HaveKeyWithValue("kind", "note"))
		Expect(store.Inserted[0].Payload).To(HaveKeyWithValue("text", "remember this"))
	})

	It("keeps a caller-assigned text key", func() {
		_, _, err := server.handleStore(ctx, nil, StoreInput{
			Content: "remember this",
			Payload: map[string]any{"text": "custom"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.Inserted[0].Payload).To(HaveKeyWithValue("text", "custom"))
	})

	It("reports embedding failures as tool errors", func() {
		embedder.FailOn = "remember this"

		result, _, err := server.handleStore(ctx, nil, StoreInput{Content: "remember this"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())

		text, ok := result.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		Expect(text.Text).To(ContainSubstring("Failed to embed content"))
	})

	It("reports insert failures as tool errors", func() {
		store.Err = errors.New("backend unreachable")

		result, _, err := server.handleStore(ctx, nil, StoreInput{Content: "remember this"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())

		text, ok := result.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		Expect(text.Text).To(ContainSubstring("Failed to store record"))
	})
})
