// Package ingest converts already-extracted artifacts — SCIP indexes, YAML
// edge lists, TOML signal profiles — into the entities and raw edges the
// engine consumes. No source-code analysis happens here.
package ingest

import (
	"log/slog"
	"os"
	"sort"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"

	"ckc/internal/errors"
	"ckc/internal/model"
)

// symbolRoleDefinition is the SCIP occurrence role bit for definitions.
const symbolRoleDefinition int32 = 1

// tokensPerLine approximates token cost from definition line span.
const tokensPerLine = 8

// LoadSCIP reads a SCIP index file and converts it to entities plus
// dependency edges. Reference occurrences become edges from the nearest
// preceding definition in the same document; symbol relationships become
// edges directly. Local symbols are skipped.
func LoadSCIP(path string, log *slog.Logger) ([]model.Entity, []model.RawEdge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(errors.StorageError, "reading SCIP index "+path, err)
	}
	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, nil, errors.Wrap(errors.InternalError, "parsing SCIP index "+path, err)
	}
	return ConvertSCIP(&index, log)
}

// ConvertSCIP converts a parsed SCIP index.
func ConvertSCIP(index *scippb.Index, log *slog.Logger) ([]model.Entity, []model.RawEdge, error) {
	entities := map[string]model.Entity{}
	var edges []model.RawEdge

	for _, doc := range index.Documents {
		for _, sym := range doc.Symbols {
			if isLocalSymbol(sym.Symbol) {
				continue
			}
			name := sym.DisplayName
			if name == "" {
				name = symbolName(sym.Symbol)
			}
			entities[sym.Symbol] = model.Entity{
				ID:            sym.Symbol,
				Name:          name,
				Kind:          symbolKind(sym.Symbol),
				Visibility:    symbolVisibility(name),
				TokenEstimate: tokensPerLine,
			}

			for _, rel := range sym.Relationships {
				if isLocalSymbol(rel.Symbol) {
					continue
				}
				signal := model.SignalDependency
				if rel.IsTypeDefinition {
					signal = model.SignalDataFlow
				}
				edges = append(edges, model.RawEdge{
					From: sym.Symbol, To: rel.Symbol, Signal: signal, Weight: 1,
				})
			}
		}
	}

	for _, doc := range index.Documents {
		defs := definitionsByLine(doc)
		for _, occ := range doc.Occurrences {
			if occ.SymbolRoles&symbolRoleDefinition != 0 {
				if e, ok := entities[occ.Symbol]; ok {
					if est := spanTokens(occ); est > e.TokenEstimate {
						e.TokenEstimate = est
						entities[occ.Symbol] = e
					}
				}
				continue
			}
			if isLocalSymbol(occ.Symbol) || len(occ.Range) == 0 {
				continue
			}
			from := enclosingDefinition(defs, occ.Range[0])
			if from == "" || from == occ.Symbol {
				continue
			}
			if _, ok := entities[occ.Symbol]; !ok {
				// Referenced but defined elsewhere (another index or the
				// standard library); the graph builder reports it dangling.
				continue
			}
			edges = append(edges, model.RawEdge{
				From: from, To: occ.Symbol, Signal: model.SignalDependency, Weight: 1,
			})
		}
	}

	out := make([]model.Entity, 0, len(entities))
	for _, e := range entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	log.Debug("scip index converted",
		"documents", len(index.Documents), "entities", len(out), "edges", len(edges))
	return out, edges, nil
}

// lineDef is one definition occurrence keyed by its starting line.
type lineDef struct {
	line   int32
	symbol string
}

// definitionsByLine collects a document's non-local definitions sorted by
// starting line.
func definitionsByLine(doc *scippb.Document) []lineDef {
	var defs []lineDef
	for _, occ := range doc.Occurrences {
		if occ.SymbolRoles&symbolRoleDefinition == 0 || isLocalSymbol(occ.Symbol) {
			continue
		}
		if len(occ.Range) == 0 {
			continue
		}
		defs = append(defs, lineDef{line: occ.Range[0], symbol: occ.Symbol})
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].line != defs[j].line {
			return defs[i].line < defs[j].line
		}
		return defs[i].symbol < defs[j].symbol
	})
	return defs
}

// enclosingDefinition finds the nearest definition at or above the line.
// Indexers that populate EnclosingRange would be more precise; starting
// line is the portable approximation.
func enclosingDefinition(defs []lineDef, line int32) string {
	best := ""
	for _, d := range defs {
		if d.line > line {
			break
		}
		best = d.symbol
	}
	return best
}

// spanTokens estimates token cost from an occurrence's line span.
func spanTokens(occ *scippb.Occurrence) int {
	r := occ.EnclosingRange
	if len(r) < 3 {
		r = occ.Range
	}
	if len(r) < 3 {
		return tokensPerLine
	}
	endLine := r[2]
	if len(r) == 3 {
		// Short form [startLine, startChar, endChar]: single line.
		endLine = r[0]
	}
	lines := int(endLine-r[0]) + 1
	if lines < 1 {
		lines = 1
	}
	return lines * tokensPerLine
}

func isLocalSymbol(symbol string) bool {
	return strings.HasPrefix(symbol, "local ")
}

// symbolKind infers the entity kind from the SCIP symbol descriptor suffix.
func symbolKind(symbol string) model.EntityKind {
	switch {
	case strings.HasSuffix(symbol, ")."):
		if strings.Contains(symbol, "#") {
			return model.KindMethod
		}
		return model.KindFunction
	case strings.HasSuffix(symbol, "#"):
		return model.KindType
	case strings.HasSuffix(symbol, "/"):
		return model.KindModule
	case strings.HasSuffix(symbol, "."):
		return model.KindVariable
	default:
		return model.KindUnknown
	}
}

func symbolVisibility(name string) model.Visibility {
	if name == "" {
		return model.VisibilityUnknown
	}
	if name[0] >= 'A' && name[0] <= 'Z' {
		return model.VisibilityPublic
	}
	return model.VisibilityPrivate
}

// symbolName extracts the trailing descriptor name from a SCIP symbol id.
func symbolName(symbol string) string {
	parts := strings.Fields(symbol)
	if len(parts) == 0 {
		return symbol
	}
	last := parts[len(parts)-1]
	last = strings.TrimSuffix(last, "().")
	last = strings.TrimSuffix(last, "#")
	last = strings.TrimSuffix(last, "/")
	last = strings.TrimSuffix(last, ".")
	if i := strings.LastIndexAny(last, "/#."); i >= 0 && i < len(last)-1 {
		last = last[i+1:]
	}
	return last
}
