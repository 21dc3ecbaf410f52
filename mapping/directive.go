package mapping

import (
	"github.com/amor/amor-go/pathutil"
)

// Directive is one instruction for populating the tables from a source
// document. Empty paths mean "synthesize" or "not applicable" depending on
// the strategy.
type Directive struct {
	Name      string
	Strategy  Strategy
	IDPath    string
	SlotPath  string
	ValuePath string
	Source    *pathutil.Document
}

type rolePath struct {
	role string
	expr string
}

// usedPaths returns the expressions a plan reads, in id/slot/value order.
func (d Directive) usedPaths(p Plan) []rolePath {
	var used []rolePath
	if p.ID == Extracted {
		used = append(used, rolePath{"id", d.IDPath})
	}
	if p.Slot == Extracted {
		used = append(used, rolePath{"slot", d.SlotPath})
	}
	if p.WritesContent {
		used = append(used, rolePath{"value", d.ValuePath})
	}
	if len(used) > 0 {
		return used
	}

	// Nothing is extracted; supplied paths only set the record count.
	for _, rp := range []rolePath{{"id", d.IDPath}, {"slot", d.SlotPath}, {"value", d.ValuePath}} {
		if rp.expr != "" {
			used = append(used, rp)
		}
	}
	return used
}
