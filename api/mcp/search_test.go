package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/logger"
	testutils "github.com/papercomputeco/spool/pkg/utils/test"
	"github.com/papercomputeco/spool/pkg/vector"
)

var _ = Describe("Search tool", func() {
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

	It("rejects an empty query", func() {
		result, output, err := server.handleSearch(ctx, nil, SearchInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
		Expect(output.Count).To(BeZero())
	})

	It("returns hits for a query", func() {
		store.SearchResults = []vector.SearchResult{
			{ID: "rec-1", Score: 0.95, Payload: map[string]any{"kind": "note"}},
			{ID: "rec-2", Score: 0.82},
		}

		result, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())

		Expect(output.Query).To(Equal("hello"))
		Expect(output.Count).To(Equal(2))
		Expect(output.Results[0].ID).To(Equal("rec-1"))
		Expect(output.Results[0].Score).To(Equal(float32(0.95)))
		Expect(output.Results[0].Payload).To(HaveKeyWithValue("kind", "note"))
	})

	It("mirrors the structured output in the text content", func() {
		store.SearchResults = []vector.SearchResult{{ID: "rec-1", Score: 0.5}}

		result, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Content).To(HaveLen(1))

		text, ok := result.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())

		var decoded SearchOutput
		Expect(json.Unmarshal([]byte(text.Text), &decoded)).To(Succeed())
		Expect(decoded.Count).To(Equal(output.Count))
		Expect(decoded.Results[0].ID).To(Equal("rec-1"))
	})

	It("defaults the limit to 5", func() {
		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.LastLimit).To(Equal(5))
	})

	It("forwards the limit and filters", func() {
		_, _, err := server.handleSearch(ctx, nil, SearchInput{
			Query:   "hello",
			Limit:   3,
			Filters: map[string]any{"kind": "note"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.LastLimit).To(Equal(3))
		Expect(store.LastFilters).To(HaveKeyWithValue("kind", "note"))
	})

	It("reports embedding failures as tool errors", func() {
		embedder.FailOn = "hello"

		result, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())

		text, ok := result.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		Expect(text.Text).To(ContainSubstring("Failed to embed query"))
	})

	It("reports store failures as tool errors", func() {
		store.Err = errors.New("backend unreachable")

		result, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "hello"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())

		text, ok := result.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		Expect(text.Text).To(ContainSubstring("Failed to search vector store"))
	})
})
