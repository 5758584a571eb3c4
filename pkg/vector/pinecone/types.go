package pinecone

// IndexModel describes an index as reported by the control plane.
type IndexModel struct {
	Name      string       `json:"name"`
	Dimension int          `json:"dimension"`
	Metric    string       `json:"metric"`
	Host      string       `json:"host"`
	Spec      *IndexSpec   `json:"spec,omitempty"`
	Status    *IndexStatus `json:"status,omitempty"`
}

// IndexSpec selects the deployment model for an index. Exactly one of
// Serverless or Pod is set.
type IndexSpec struct {
	Serverless *ServerlessSpec `json:"serverless,omitempty"`
	Pod        *PodSpec        `json:"pod,omitempty"`
}

// ServerlessSpec places an index on serverless capacity.
type ServerlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

// PodSpec places an index on dedicated pods.
type PodSpec struct {
	Environment string `json:"environment"`
	PodType     string `json:"pod_type,omitempty"`
	Pods        int    `json:"pods,omitempty"`
	Replicas    int    `json:"replicas,omitempty"`
	Shards      int    `json:"shards,omitempty"`
}

// IndexStatus reports index readiness.
type IndexStatus struct {
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

// CreateIndexRequest is the control-plane request to create an index.
type CreateIndexRequest struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	Spec      IndexSpec `json:"spec"`
}

// Vector is a single point on the data plane.
type Vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryRequest is the data-plane similarity query.
type QueryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeValues   bool           `json:"includeValues"`
	IncludeMetadata bool           `json:"includeMetadata"`
}

// QueryResponse holds query matches in the backend's ranking order.
type QueryResponse struct {
	Matches []Match `json:"matches"`
}

// Match is one query hit.
type Match struct {
	ID       string         `json:"id"`
	Score    float32        `json:"score"`
	Values   []float32      `json:"values,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FetchResponse maps fetched ids to their vectors. Absent ids are simply
// missing from the map.
type FetchResponse struct {
	Vectors map[string]Vector `json:"vectors"`
}

type listIndexesResponse struct {
	Indexes []IndexModel `json:"indexes"`
}

type upsertRequest struct {
	Vectors []Vector `json:"vectors"`
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}
