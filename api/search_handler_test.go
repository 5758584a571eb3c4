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

	"github.com/papercomputeco/spool/pkg/logger"
	testutils "github.com/papercomputeco/spool/pkg/utils/test"
	"github.com/papercomputeco/spool/pkg/vector"
)

var _ = Describe("handleSearch", func() {
	var (
		server   *Server
		store    *testutils.MockDriver
		embedder *testutils.MockEmbedder
	)

	BeforeEach(func() {
		store = testutils.NewMockDriver()
		embedder = testutils.NewMockEmbedder()

		var err error
		server, err = NewServer(
			Config{
				ListenAddr: ":0",
				Collection: "notes",
				Embedder:   embedder,
			},
			store,
			logger.Nop(),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns 400 for an invalid body", func() {
		req, err := http.NewRequest(http.MethodPost, "/v1/search", bytes.NewReader([]byte("{not json")))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("returns 400 when neither query nor vector is present", func() {
		resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("query or vector is required"))
	})

	It("returns 503 for query searches without an embedder", func() {
		plain, err := NewServer(Config{ListenAddr: ":0"}, store, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		resp, err := plain.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
			Query: "hello",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
	})

	It("searches with a caller-provided vector", func() {
		store.SearchResults = []vector.SearchResult{
			{ID: "rec-1", Score: 0.95, Payload: map[string]any{"kind": "note"}},
			{ID: "rec-2", Score: 0.82},
		}

		resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
			Vector: []float32{0.5, 0.6},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		var out SearchResponse
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, &out)).To(Succeed())

		Expect(out.Count).To(Equal(2))
		Expect(out.Results[0].ID).To(Equal("rec-1"))
		Expect(out.Results[0].Score).To(Equal(float32(0.95)))
		Expect(out.Results[0].Payload).To(HaveKeyWithValue("kind", "note"))
		Expect(out.Results[1].ID).To(Equal("rec-2"))

		Expect(store.LastVector).To(Equal([]float32{0.5, 0.6}))
		Expect(embedder.Texts).To(BeEmpty())
	})

	It("embeds query searches", func() {
		resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
			Query: "hello",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		Expect(embedder.Texts).To(Equal([]string{"hello"}))
		Expect(store.LastQuery).To(Equal("hello"))
		Expect(store.LastVector).To(Equal([]float32{0.1, 0.2, 0.3}))
	})

	It("defaults the limit", func() {
		resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
			Vector: []float32{0.5},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(store.LastLimit).To(Equal(DefaultSearchLimit))
	})

	It("honors the requested limit", func() {
		resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
			Vector: []float32{0.5},
			Limit:  2,
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(store.LastLimit).To(Equal(2))
	})

	It("forwards filters to the store", func() {
		resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
			Vector:  []float32{0.5},
			Filters: map[string]any{"kind": "note"},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(store.LastFilters).To(HaveKeyWithValue("kind", "note"))
	})

	It("returns 500 when embedding fails", func() {
		embedder.FailOn = "hello"

		resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
			Query: "hello",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
	})

	It("returns 500 when the store fails", func() {
		store.Err = errors.New("backend unreachable")

		resp, err := server.app.Test(jsonRequest(http.MethodPost, "/v1/search", SearchRequest{
			Vector: []float32{0.5},
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
	})
})
