package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/eventstream"
	"github.com/papercomputeco/spool/pkg/history"
	"github.com/papercomputeco/spool/pkg/logger"
	testutils "github.com/papercomputeco/spool/pkg/utils/test"
	"github.com/papercomputeco/spool/pkg/vector"
)

func jsonRequest(method, target string, body any) *http.Request {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequest(method, target, reader)
	Expect(err).NotTo(HaveOccurred())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

var _ = Describe("record handlers", func() {
	var (
		server    *Server
		store     *testutils.MockDriver
		embedder  *testutils.MockEmbedder
		journal   *testutils.MockJournal
		publisher *testutils.MockPublisher
	)

	BeforeEach(func() {
		store = testutils.NewMockDriver()
		embedder = testutils.NewMockEmbedder()
		journal = testutils.NewMockJournal()
		publisher = testutils.NewMockPublisher()

		var err error
		server, err = NewServer(
			Config{
				ListenAddr: ":0",
				Provider:   "sqlitevec",
				Collection: "notes",
				Embedder:   embedder,
				Journal:    journal,
				Publisher:  publisher,
			},
			store,
			logger.Nop(),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("POST /v1/records", func() {
		It("inserts records from vectors and generates ids", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
				Vectors: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var out InsertRecordsResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())

			Expect(out.Inserted).To(Equal(2))
			Expect(out.IDs).To(HaveLen(2))
			Expect(out.IDs[0]).NotTo(BeEmpty())
			Expect(store.Inserted).To(HaveLen(2))
		})

		It("uses caller-assigned ids when provided", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
				Vectors: [][]float32{{0.1, 0.2}},
				IDs:     []string{"rec-1"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			Expect(store.Inserted).To(HaveLen(1))
			Expect(store.Inserted[0].ID).To(Equal("rec-1"))
		})

		It("journals and publishes one mutation per record", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
				Vectors:  [][]float32{{0.1}, {0.2}},
				Payloads: []map[string]any{{"kind": "note"}, {"kind": "doc"}},
				IDs:      []string{"rec-1", "rec-2"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			Expect(journal.Entries).To(HaveLen(2))
			Expect(journal.Entries[0].Collection).To(Equal("notes"))
			Expect(journal.Entries[0].RecordID).To(Equal("rec-1"))
			Expect(journal.Entries[0].Action).To(Equal(history.ActionCreated))

			Expect(publisher.Events).To(HaveLen(2))
			Expect(publisher.Events[0].EventType).To(Equal(eventstream.EventTypeRecordUpserted))
			Expect(publisher.Events[0].Collection).To(Equal("notes"))
			Expect(publisher.Events[0].Provider).To(Equal("sqlitevec"))
			Expect(publisher.Events[1].RecordID).To(Equal("rec-2"))
		})

		It("returns 400 when ids do not match vectors", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
				Vectors: [][]float32{{0.1}, {0.2}},
				IDs:     []string{"rec-1"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("must be the same length"))
		})

		It("returns 400 when neither vectors nor texts are present", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 when both vectors and texts are present", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
				Vectors: [][]float32{{0.1}},
				Texts:   []string{"hello"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for an invalid body", func() {
			req, err := http.NewRequest(http.MethodPost, "/v1/records", bytes.NewReader([]byte("{not json")))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 500 when the store fails", func() {
			store.Err = errors.New("backend unreachable")

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
				Vectors: [][]float32{{0.1}},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})

		Context("with texts", func() {
			It("embeds each text and keeps it in the payload", func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
					Texts: []string{"hello", "world"},
				}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

				Expect(embedder.Texts).To(Equal([]string{"hello", "world"}))
				Expect(store.Inserted).To(HaveLen(2))
				Expect(store.Inserted[0].Vector).To(Equal([]float32{0.1, 0.2, 0.3}))
				Expect(store.Inserted[0].Payload).To(HaveKeyWithValue("text", "hello"))
				Expect(store.Inserted[1].Payload).To(HaveKeyWithValue("text", "world"))
			})

			It("keeps a caller-assigned text payload key", func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
					Texts:    []string{"hello"},
					Payloads: []map[string]any{{"text": "custom"}},
				}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

				Expect(store.Inserted[0].Payload).To(HaveKeyWithValue("text", "custom"))
			})

			It("returns 400 when payloads do not match texts", func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
					Texts:    []string{"hello", "world"},
					Payloads: []map[string]any{{"kind": "note"}},
				}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})

			It("returns 500 when embedding fails", func() {
				embedder.FailOn = "hello"

				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
					Texts: []string{"hello"},
				}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
			})

			It("returns 503 without an embedder", func() {
				plain, err := NewServer(Config{ListenAddr: ":0"}, store, logger.Nop())
				Expect(err).NotTo(HaveOccurred())

				resp, err := plain.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
					Texts: []string{"hello"},
				}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
			})
		})

		It("still succeeds when journaling fails", func() {
			journal.Err = errors.New("journal closed")

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
				Vectors: [][]float32{{0.1}},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		})

		It("still succeeds when publishing fails", func() {
			publisher.Err = errors.New("broker unreachable")

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/records", InsertRecordsRequest{
				Vectors: [][]float32{{0.1}},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
		})
	})

	Describe("GET /v1/records/:id", func() {
		It("returns the record without a score", func() {
			store.GetResult = &vector.SearchResult{
				ID:      "rec-1",
				Payload: map[string]any{"kind": "note"},
			}

			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/records/rec-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).NotTo(ContainSubstring("score"))

			var out RecordResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.ID).To(Equal("rec-1"))
			Expect(out.Payload).To(HaveKeyWithValue("kind", "note"))
		})

		It("returns 404 for a missing record", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/records/ghost", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("record not found"))
		})

		It("returns 500 when the store fails", func() {
			store.Err = errors.New("backend unreachable")

			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/records/rec-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("PUT /v1/records/:id", func() {
		It("updates a record's vector", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/records/rec-1", UpdateRecordRequest{
				Vector: []float32{0.9, 0.8},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out MutationResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.ID).To(Equal("rec-1"))

			Expect(store.UpdatedIDs).To(Equal([]string{"rec-1"}))
		})

		It("journals and publishes the update", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/records/rec-1", UpdateRecordRequest{
				Payload: map[string]any{"kind": "doc"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			Expect(journal.Entries).To(HaveLen(1))
			Expect(journal.Entries[0].Action).To(Equal(history.ActionUpdated))
			Expect(publisher.Events).To(HaveLen(1))
			Expect(publisher.Events[0].EventType).To(Equal(eventstream.EventTypeRecordUpserted))
		})

		It("embeds text updates and backfills the payload", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/records/rec-1", UpdateRecordRequest{
				Text: "updated content",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			Expect(embedder.Texts).To(Equal([]string{"updated content"}))
			Expect(journal.Entries).To(HaveLen(1))
			Expect(journal.Entries[0].Payload).To(HaveKeyWithValue("text", "updated content"))
		})

		It("returns 400 for an empty update", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/records/rec-1", UpdateRecordRequest{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 when both vector and text are present", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/records/rec-1", UpdateRecordRequest{
				Vector: []float32{0.1},
				Text:   "hello",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 503 for text updates without an embedder", func() {
			plain, err := NewServer(Config{ListenAddr: ":0"}, store, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			resp, err := plain.app.Test(jsonRequest(http.MethodPut, "/v1/records/rec-1", UpdateRecordRequest{
				Text: "hello",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})

		It("returns 404 when the backend reports a missing record", func() {
			store.Err = vector.ErrNotFound

			resp, err := server.app.Test(jsonRequest(http.MethodPut, "/v1/records/ghost", UpdateRecordRequest{
				Payload: map[string]any{"kind": "doc"},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("DELETE /v1/records/:id", func() {
		It("deletes the record and reports the mutation", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodDelete, "/v1/records/rec-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			Expect(store.DeletedIDs).To(Equal([]string{"rec-1"}))
			Expect(journal.Entries).To(HaveLen(1))
			Expect(journal.Entries[0].Action).To(Equal(history.ActionDeleted))
			Expect(publisher.Events).To(HaveLen(1))
			Expect(publisher.Events[0].EventType).To(Equal(eventstream.EventTypeRecordDeleted))
			Expect(publisher.Events[0].Payload).To(BeNil())
		})

		It("returns 500 when the store fails", func() {
			store.Err = errors.New("backend unreachable")

			resp, err := server.app.Test(jsonRequest(http.MethodDelete, "/v1/records/rec-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("GET /v1/records", func() {
		BeforeEach(func() {
			store.ListResults = []vector.SearchResult{
				{ID: "rec-1", Payload: map[string]any{"kind": "note"}},
				{ID: "rec-2", Payload: map[string]any{"kind": "doc"}},
			}
		})

		It("lists records", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/records", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out ListRecordsResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())

			Expect(out.Count).To(Equal(2))
			Expect(out.Records[0].ID).To(Equal("rec-1"))
			Expect(out.Records[1].ID).To(Equal("rec-2"))
		})

		It("honors the limit parameter", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/records?limit=1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out ListRecordsResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())

			Expect(store.LastLimit).To(Equal(1))
			Expect(out.Count).To(Equal(1))
		})

		It("parses repeated filter parameters", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/records?filter=kind:note&filter=lang:en", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			Expect(store.LastFilters).To(HaveKeyWithValue("kind", "note"))
			Expect(store.LastFilters).To(HaveKeyWithValue("lang", "en"))
		})

		It("returns 400 for a malformed filter", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/records?filter=nocolon", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("filter must be key:value"))
		})

		It("returns 500 when the store fails", func() {
			store.Err = errors.New("backend unreachable")

			resp, err := server.app.Test(jsonRequest(http.MethodGet, "/v1/records", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})
})
