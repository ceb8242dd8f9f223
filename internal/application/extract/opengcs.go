package extract

import (
	"path"
	"time"

	"3tcapital/saftprocessor/internal/core/opengcs"
	"3tcapital/saftprocessor/internal/core/saft"
	"3tcapital/saftprocessor/internal/infrastructure/xmltree"
)

// ProcessedAtLayout matches the offset-aware timestamps already stored by consumers.
const ProcessedAtLayout = "2006-01-02T15:04:05.000000-07:00"

// ExtractOpenGCs reads a store's open guest checks. The declared OpenGCs counter
// includes a trailing sentinel, hence the minus one.
func ExtractOpenGCs(root *xmltree.Node, filename string, now time.Time) (*opengcs.Snapshot, error) {
	name := path.Base(filename)
	if root == nil || root.Name != "OpenGCs" {
		return nil, &saft.ParseError{File: name, Reason: "OpenGCs root not found"}
	}

	snap := &opengcs.Snapshot{
		SourceFile:  name,
		ProcessedAt: now.Format(ProcessedAtLayout),
		Total:       ParseNumber(root.Text("OpenGCsTotal")),
		Count:       ParseInt(root.Text("OpenGCs")) - 1,
		GCs:         []opengcs.GC{},
	}
	for _, gc := range root.All("GC") {
		snap.GCs = append(snap.GCs, opengcs.GC{
			Number:            ParseInt(gc.Text("number")),
			OpenTime:          gc.Text("OpenTime"),
			LastTime:          gc.Text("LastTime"),
			Guests:            ParseInt(gc.Text("guests")),
			OperatorNo:        ParseInt(gc.Text("operatorNo")),
			OperatorName:      gc.Text("operatorName"),
			StartOperatorNo:   ParseInt(gc.Text("StartOperatorNo")),
			StartOperatorName: gc.Text("StartOperatorName"),
			Total:             ParseNumber(gc.Text("total")),
		})
	}
	return snap, nil
}
