package mvtree

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// TestTree_DataDriven runs the structural scenarios in testdata/tree. Keys
// are ints and every key is stored with itself as value.
//
//	new value-block=N min-value-block=N internal-block=N min-internal-block=N
//	insert <key>...
//	delete <key>...
//	search <key>...
//	print
//	check
//	scan [from=<key>]
//	rscan [from=<key>]
func TestTree_DataDriven(t *testing.T) {
	var tree *Tree[int, int]

	keys := func(t *testing.T, d *datadriven.TestData) []int {
		out := make([]int, 0, len(d.CmdArgs))
		for _, arg := range d.CmdArgs {
			k, err := strconv.Atoi(arg.Key)
			require.NoError(t, err)
			out = append(out, k)
		}
		return out
	}

	datadriven.RunTest(t, "testdata/tree", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "new":
			var vbs, minVbs, ibs, minIbs int
			d.ScanArgs(t, "value-block", &vbs)
			d.ScanArgs(t, "min-value-block", &minVbs)
			d.ScanArgs(t, "internal-block", &ibs)
			d.ScanArgs(t, "min-internal-block", &minIbs)
			tree = New[int, int](WithBlockSizes(vbs, minVbs, ibs, minIbs))
			return ""

		case "insert":
			for _, k := range keys(t, d) {
				require.NoError(t, tree.Insert(nil, k, k))
			}
			return fmt.Sprintf("size=%d", tree.Size(nil))

		case "delete":
			missing := 0
			for _, k := range keys(t, d) {
				ok, err := tree.Delete(nil, k)
				require.NoError(t, err)
				if !ok {
					missing++
				}
			}
			if missing > 0 {
				return fmt.Sprintf("size=%d missing=%d", tree.Size(nil), missing)
			}
			return fmt.Sprintf("size=%d", tree.Size(nil))

		case "search":
			var b strings.Builder
			for _, k := range keys(t, d) {
				if v, ok := tree.Search(nil, k); ok {
					fmt.Fprintf(&b, "%d: %d\n", k, v)
				} else {
					fmt.Fprintf(&b, "%d: not found\n", k)
				}
			}
			return b.String()

		case "print":
			return tree.Format(nil)

		case "check":
			return tree.ConsistencyReport(nil).String()

		case "scan", "rscan":
			var it *Iterator[int, int]
			reverse := d.Cmd == "rscan"
			switch {
			case d.HasArg("from") && reverse:
				var from int
				d.ScanArgs(t, "from", &from)
				it = tree.DescendFrom(nil, from)
			case d.HasArg("from"):
				var from int
				d.ScanArgs(t, "from", &from)
				it = tree.AscendFrom(nil, from)
			case reverse:
				it = tree.Descend(nil)
			default:
				it = tree.Ascend(nil)
			}
			var out []string
			for k := range it.Keys() {
				out = append(out, strconv.Itoa(k))
			}
			return strings.Join(out, " ")

		default:
			return fmt.Sprintf("unknown command: %s", d.Cmd)
		}
	})
}
