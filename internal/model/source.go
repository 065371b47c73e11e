package model

import "context"

// GraphSource is the abstract provider the engine consumes its input from.
// The static-analysis front end and the storage layer both satisfy it; the
// engine never touches persistence mechanics directly.
type GraphSource interface {
	// Entities returns every entity of the analysis run.
	Entities(ctx context.Context) ([]Entity, error)

	// RawEdges returns every raw signal edge of the analysis run.
	RawEdges(ctx context.Context) ([]RawEdge, error)
}

// SliceSource is an in-memory GraphSource, used by library callers that
// already hold the extracted records.
type SliceSource struct {
	EntityList []Entity
	EdgeList   []RawEdge
}

// Entities implements GraphSource.
func (s *SliceSource) Entities(ctx context.Context) ([]Entity, error) {
	return s.EntityList, nil
}

// RawEdges implements GraphSource.
func (s *SliceSource) RawEdges(ctx context.Context) ([]RawEdge, error) {
	return s.EdgeList, nil
}
