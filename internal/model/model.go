// Package model defines the core records exchanged between the clustering
// engine and its external collaborators: entities, raw signal edges, and the
// warnings attached to derived clusters.
package model

// EntityKind represents the kind of code entity
type EntityKind string

const (
	KindFunction EntityKind = "function"
	KindMethod   EntityKind = "method"
	KindType     EntityKind = "type"
	KindModule   EntityKind = "module"
	KindVariable EntityKind = "variable"
	KindConstant EntityKind = "constant"
	KindUnknown  EntityKind = "unknown"
)

// Visibility represents the declared visibility of an entity
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityUnknown Visibility = "unknown"
)

// Entity is a node in the code dependency graph. Entities are immutable once
// ingested; TokenEstimate is the cost of including the entity's source in a
// context window.
type Entity struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"` // display name; ID is used when empty
	Kind          EntityKind `json:"kind"`
	Visibility    Visibility `json:"visibility"`
	TokenEstimate int        `json:"tokenEstimate"`
}

// DisplayName returns the entity name, falling back to the id.
func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.ID
}

// SignalKind classifies a raw edge by the analysis that produced it
type SignalKind string

const (
	// SignalDependency covers call/reference/import relationships
	SignalDependency SignalKind = "dependency"
	// SignalDataFlow covers shared-data relationships
	SignalDataFlow SignalKind = "dataflow"
	// SignalTemporal covers co-change correlation from history
	SignalTemporal SignalKind = "temporal"
	// SignalSemantic covers name/embedding similarity
	SignalSemantic SignalKind = "semantic"
)

// AllSignals lists the signal kinds in canonical order.
var AllSignals = []SignalKind{SignalDependency, SignalDataFlow, SignalTemporal, SignalSemantic}

// RawEdge is a single-signal directed edge between two entities. Multiple
// raw edges may exist for the same pair, one per signal; duplicates within a
// signal are summed during graph construction.
type RawEdge struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Signal SignalKind `json:"signal"`
	Weight float64    `json:"weight"`
}

// WarningCode identifies an advisory condition attached to a cluster or pack
type WarningCode string

const (
	// WarnLowCohesion flags a cluster below the cohesion threshold
	WarnLowCohesion WarningCode = "low-cohesion"
	// WarnHighCoupling flags a cluster above the coupling threshold
	WarnHighCoupling WarningCode = "high-coupling"
	// WarnOversized flags a cluster still violating size constraints after
	// the recursive split budget was exhausted
	WarnOversized WarningCode = "oversized"
	// WarnTokenBudget flags a cluster grossly exceeding the token target
	WarnTokenBudget WarningCode = "token-budget"
	// WarnBudgetInfeasible flags a context pack whose budget could not admit
	// even the focus entity
	WarnBudgetInfeasible WarningCode = "budget-infeasible"
)

// TaskKind biases context pack assembly toward different signals
type TaskKind string

const (
	TaskBugFix   TaskKind = "bug_fix"
	TaskRefactor TaskKind = "refactor"
	TaskFeature  TaskKind = "feature"
	TaskExplain  TaskKind = "explain"
)
