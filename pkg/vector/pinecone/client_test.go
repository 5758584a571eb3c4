package pinecone_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/spool/pkg/vector/pinecone"
)

var _ = Describe("REST client", func() {
	var (
		ctx      context.Context
		requests []*http.Request
		bodies   []map[string]any
		server   *httptest.Server
		respond  func(w http.ResponseWriter, r *http.Request)
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		bodies = nil
		respond = func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`))
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests = append(requests, r)
			var body map[string]any
			if r.Body != nil {
				_ = json.NewDecoder(r.Body).Decode(&body)
			}
			bodies = append(bodies, body)
			respond(w, r)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newClient := func() pinecone.Client {
		client, err := pinecone.NewClient(pinecone.ClientConfig{
			APIKey:  "test-key",
			BaseURL: server.URL,
		})
		Expect(err).NotTo(HaveOccurred())
		return client
	}

	It("requires an API key", func() {
		_, err := pinecone.NewClient(pinecone.ClientConfig{})
		Expect(err).To(HaveOccurred())
	})

	It("sends the API key header on every request", func() {
		respond = func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"indexes": []any{}})
		}

		_, err := newClient().ListIndexes(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests).To(HaveLen(1))
		Expect(requests[0].Header.Get("Api-Key")).To(Equal("test-key"))
	})

	It("lists indexes", func() {
		respond = func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"indexes": []map[string]any{
					{"name": "first", "dimension": 128, "metric": "cosine", "host": "first.svc.pinecone.io"},
					{"name": "second", "dimension": 768, "metric": "euclidean", "host": "second.svc.pinecone.io"},
				},
			})
		}

		indexes, err := newClient().ListIndexes(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(indexes).To(HaveLen(2))
		Expect(indexes[0].Name).To(Equal("first"))
		Expect(indexes[1].Dimension).To(Equal(768))
		Expect(requests[0].Method).To(Equal(http.MethodGet))
		Expect(requests[0].URL.Path).To(Equal("/indexes"))
	})

	It("creates an index with the deployment spec", func() {
		respond = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"name": "fresh", "host": "fresh.svc.pinecone.io"})
		}

		model, err := newClient().CreateIndex(ctx, pinecone.CreateIndexRequest{
			Name:      "fresh",
			Dimension: 128,
			Metric:    "cosine",
			Spec:      pinecone.IndexSpec{Serverless: &pinecone.ServerlessSpec{Cloud: "aws", Region: "us-east-1"}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(model.Name).To(Equal("fresh"))

		Expect(requests[0].Method).To(Equal(http.MethodPost))
		Expect(requests[0].URL.Path).To(Equal("/indexes"))
		spec, ok := bodies[0]["spec"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(spec).To(HaveKey("serverless"))
	})

	It("deletes an index", func() {
		respond = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		}

		Expect(newClient().DeleteIndex(ctx, "stale")).To(Succeed())
		Expect(requests[0].Method).To(Equal(http.MethodDelete))
		Expect(requests[0].URL.Path).To(Equal("/indexes/stale"))
	})

	It("surfaces non-2xx responses with the backend body", func() {
		respond = func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusForbidden)
		}

		_, err := newClient().ListIndexes(ctx)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("status 403"))
		Expect(err.Error()).To(ContainSubstring("quota exceeded"))
	})

	Describe("data plane", func() {
		newIndex := func() pinecone.Index {
			respond = func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/indexes/live" {
					// Point the data-plane host back at this test server.
					json.NewEncoder(w).Encode(map[string]any{
						"name": "live",
						"host": server.URL,
					})
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{}`))
			}
			ix, err := newClient().Index(ctx, "live")
			Expect(err).NotTo(HaveOccurred())
			return ix
		}

		It("upserts vectors", func() {
			ix := newIndex()

			err := ix.Upsert(ctx, []pinecone.Vector{
				{ID: "id1", Values: []float32{0.1, 0.2}, Metadata: map[string]any{"name": "vector1"}},
			})
			Expect(err).NotTo(HaveOccurred())

			last := requests[len(requests)-1]
			Expect(last.URL.Path).To(Equal("/vectors/upsert"))
			vectors, ok := bodies[len(bodies)-1]["vectors"].([]any)
			Expect(ok).To(BeTrue())
			Expect(vectors).To(HaveLen(1))
		})

		It("queries with topK and filters", func() {
			ix := newIndex()
			respond = func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"matches": []map[string]any{{"id": "id1", "score": 0.9}},
				})
			}

			resp, err := ix.Query(ctx, pinecone.QueryRequest{
				Vector:          []float32{0.1, 0.2},
				TopK:            3,
				Filter:          map[string]any{"name": map[string]any{"$eq": "vector1"}},
				IncludeMetadata: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Matches).To(HaveLen(1))
			Expect(resp.Matches[0].Score).To(Equal(float32(0.9)))

			body := bodies[len(bodies)-1]
			Expect(body["topK"]).To(BeNumerically("==", 3))
			Expect(body).To(HaveKey("filter"))
		})

		It("fetches by id through query parameters", func() {
			ix := newIndex()
			respond = func(w http.ResponseWriter, _ *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"vectors": map[string]any{"id1": map[string]any{"id": "id1"}},
				})
			}

			resp, err := ix.Fetch(ctx, []string{"id1", "id2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Vectors).To(HaveKey("id1"))

			last := requests[len(requests)-1]
			Expect(last.URL.Path).To(Equal("/vectors/fetch"))
			Expect(last.URL.Query()["ids"]).To(Equal([]string{"id1", "id2"}))
		})

		It("deletes by id", func() {
			ix := newIndex()

			Expect(ix.Delete(ctx, []string{"id1"})).To(Succeed())
			last := requests[len(requests)-1]
			Expect(last.URL.Path).To(Equal("/vectors/delete"))
		})
	})
})
