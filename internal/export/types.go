package export

// SchemaVersion is stamped on every exported document.
const SchemaVersion = 1

// ClusterRecord is one cluster row in clusters.json.
type ClusterRecord struct {
	ClusterID              string   `json:"clusterId"`
	Level                  float64  `json:"level"`
	Members                []string `json:"members"`
	Cohesion               float64  `json:"cohesion"`
	Coupling               float64  `json:"coupling"`
	ModularityContribution float64  `json:"modularityContribution"`
	Conductance            float64  `json:"conductance"`
	TokenEstimate          int      `json:"tokenEstimate"`
	Label                  string   `json:"label,omitempty"`
	LabelConfidence        float64  `json:"labelConfidence,omitempty"`
	Warnings               []string `json:"warnings,omitempty"`
}

// EdgeRecord is one inter-cluster edge row in cluster_edges.json. Weight
// keys are control, data, temporal, and semantic.
type EdgeRecord struct {
	FromCluster       string             `json:"fromCluster"`
	ToCluster         string             `json:"toCluster"`
	Level             float64            `json:"level"`
	Weights           map[string]float64 `json:"weights"`
	BoundaryCrossings int                `json:"boundaryCrossings"`
}

// AssignmentRecord is one entity-to-cluster row in cluster_assignments.json.
type AssignmentRecord struct {
	EntityID  string  `json:"entityId"`
	ClusterID string  `json:"clusterId"`
	Level     float64 `json:"level"`
}

// PackRecord is the context_pack.json payload.
type PackRecord struct {
	Focus            string   `json:"focus"`
	BudgetTokens     int      `json:"budgetTokens"`
	TaskKind         string   `json:"taskKind"`
	SelectedClusters []string `json:"selectedClusters"`
	SelectedEntities []string `json:"selectedEntities"`
	TokenEstimate    int      `json:"tokenEstimate"`
	Truncated        bool     `json:"truncated"`
	Warnings         []string `json:"warnings,omitempty"`
	Justification    string   `json:"justification"`
}

// ClustersDocument is the clusters.json envelope.
type ClustersDocument struct {
	SchemaVersion int             `json:"schemaVersion"`
	Clusters      []ClusterRecord `json:"clusters"`
}

// EdgesDocument is the cluster_edges.json envelope.
type EdgesDocument struct {
	SchemaVersion int          `json:"schemaVersion"`
	Edges         []EdgeRecord `json:"edges"`
}

// AssignmentsDocument is the cluster_assignments.json envelope.
type AssignmentsDocument struct {
	SchemaVersion int                `json:"schemaVersion"`
	Assignments   []AssignmentRecord `json:"assignments"`
}

// PackDocument is the context_pack.json envelope.
type PackDocument struct {
	SchemaVersion int        `json:"schemaVersion"`
	Pack          PackRecord `json:"pack"`
}
