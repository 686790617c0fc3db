package layer

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
)

// TestBaseLayerScenario drives the base-layer end-to-end scenario as a
// sequence of commands against one fixture, rather than one assertion per
// Go test function, so the seed scenario doubles as a regression fixture
// anyone can extend by editing testdata/scenario_base_layer.
func TestBaseLayerScenario(t *testing.T) {
	var l *Layer
	datadriven.RunTest(t, "testdata/scenario_base_layer", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "build":
			l = buildBaseLayer(t)
			return "ok"

		case "exists":
			ids := parseUints(t, d)
			return fmt.Sprintf("%v", l.TripleExists(ids[0], ids[1], ids[2]))

		case "subject-id":
			id, ok := l.SubjectID(d.CmdArgs[0].Key)
			if !ok {
				return "none"
			}
			return strconv.FormatUint(id, 10)

		case "predicate-id":
			id, ok := l.PredicateID(d.CmdArgs[0].Key)
			if !ok {
				return "none"
			}
			return strconv.FormatUint(id, 10)

		case "id-object":
			ids := parseUints(t, d)
			s, isValue, ok := l.IDObject(ids[0])
			if !ok {
				return "none"
			}
			kind := "node"
			if isValue {
				kind = "value"
			}
			return kind + " " + s

		case "subjects":
			return joinUints(l.Subjects())

		case "lookup-subject":
			ids := parseUints(t, d)
			return joinUints(l.LookupSubject(ids[0]))

		case "triple-count":
			return strconv.FormatUint(l.TripleCount(), 10)

		default:
			t.Fatalf("unknown command %q", d.Cmd)
			return ""
		}
	})
}

func parseUints(t *testing.T, d *datadriven.TestData) []uint64 {
	t.Helper()
	out := make([]uint64, len(d.CmdArgs))
	for i, arg := range d.CmdArgs {
		v, err := strconv.ParseUint(arg.Key, 10, 64)
		if err != nil {
			t.Fatalf("parsing argument %q: %v", arg.Key, err)
		}
		out[i] = v
	}
	return out
}

func joinUints(vs []uint64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatUint(v, 10)
	}
	return strings.Join(parts, " ")
}
