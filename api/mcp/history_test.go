package mcp

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/logger"
	testutils "github.com/papercomputeco/spool/pkg/utils/test"
)

var _ = Describe("History tool", func() {
	var (
		server  *Server
		journal *testutils.MockJournal
		ctx     context.Context
	)

	BeforeEach(func() {
		journal = testutils.NewMockJournal()
		server = &Server{config: Config{
			Journal:    journal,
			Collection: "notes",
			Logger:     logger.Nop(),
		}}
		ctx = context.Background()
	})

	It("rejects an empty id", func() {
		result, output, err := server.handleHistory(ctx, nil, HistoryInput{})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())
		Expect(output.Entries).To(BeEmpty())
	})

	It("returns the record's mutations oldest first", func() {
		Expect(journal.Append(ctx, "notes", "rec-1", history.ActionCreated, map[string]any{"kind": "note"})).To(Succeed())
		Expect(journal.Append(ctx, "notes", "rec-1", history.ActionUpdated, nil)).To(Succeed())
		Expect(journal.Append(ctx, "notes", "other", history.ActionCreated, nil)).To(Succeed())

		result, output, err := server.handleHistory(ctx, nil, HistoryInput{ID: "rec-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())

		Expect(output.ID).To(Equal("rec-1"))
		Expect(output.Entries).To(HaveLen(2))
		Expect(output.Entries[0].Action).To(Equal("created"))
		Expect(output.Entries[0].Payload).To(HaveKeyWithValue("kind", "note"))
		Expect(output.Entries[1].Action).To(Equal("updated"))
	})

	It("returns an empty history for an unknown record", func() {
		result, output, err := server.handleHistory(ctx, nil, HistoryInput{ID: "ghost"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeFalse())
		Expect(output.Entries).To(BeEmpty())
	})

	It("reports journal failures as tool errors", func() {
		journal.Err = errors.New("journal closed")

		result, _, err := server.handleHistory(ctx, nil, HistoryInput{ID: "rec-1"})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.IsError).To(BeTrue())

		text, ok := result.Content[0].(*mcp.TextContent)
		Expect(ok).To(BeTrue())
		Expect(text.Text).To(ContainSubstring("History recall failed"))
	})
})
