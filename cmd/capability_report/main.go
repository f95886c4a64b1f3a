// capability_report partitions a graph for a backend and reports which nodes the backend takes.
//
// Usage:
//
//	capability_report [-backend=xnnpack:nofusion] [-fuse=false] [-color=false] [-layout_ops=Conv] <graph.yaml>
//
// The graph is described in YAML, see graph.ParseYAML. Use -v=1 (or 2) for the partitioning logs.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/capgraph/backends"
	_ "github.com/gomlx/capgraph/backends/xnnpack"
	"github.com/gomlx/capgraph/pkg/core/graph"
	"github.com/gomlx/capgraph/pkg/fusion"
	"github.com/gomlx/capgraph/pkg/partition"
	"github.com/gomlx/capgraph/pkg/scheduler"
	"github.com/gomlx/capgraph/pkg/support/fsutil"
	"github.com/gomlx/capgraph/pkg/support/xslices"
	"github.com/janpfeifer/must"
	"github.com/muesli/termenv"
	"k8s.io/klog/v2"
)

var (
	flagBackend = flag.String("backend", "",
		fmt.Sprintf("Backend configuration, formatted as \"<backend_name>:<backend_configuration>\". "+
			"If empty, it's taken from $%s, or the first registered backend is used.", backends.CAPGRAPH_BACKEND))
	flagFuse           = flag.Bool("fuse", true, "Apply the fusion transformations (Where+Softmax) before partitioning.")
	flagColor          = flag.Bool("color", true, "Use colors in the report. If false, only plain text is used.")
	flagMaxFusionSteps = flag.Int("max_fusion_steps", fusion.DefaultMaxSteps,
		"Maximum number of rounds of fusion transformations.")
	flagLayoutOps = xslices.Flag("layout_ops", scheduler.DefaultLayoutSensitiveOps,
		"Comma-separated operators moved to the channels-last (NHWC) domain once assigned to the backend.",
		xslices.ParseString)
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		klog.Errorf("Missing graph file to read from. See 'capability_report -help'")
		os.Exit(1)
	}
	if len(args) > 1 {
		klog.Errorf("Too many arguments. See 'capability_report -help'.")
		os.Exit(1)
	}
	if !*flagColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	var backend backends.Backend
	if *flagBackend == "" {
		backend = must.M1(backends.New())
	} else {
		backend = must.M1(backends.NewWithConfig(*flagBackend))
	}
	g := must.M1(graph.LoadYAML(must.M1(fsutil.ResolveFile(args[0]))))
	numNodes := g.NumNodes()
	result := must.M1(scheduler.Run(g, backend, scheduler.Options{
		SkipFusion:         !*flagFuse,
		Fusion:             fusion.Options{MaxSteps: *flagMaxFusionSteps},
		LayoutSensitiveOps: *flagLayoutOps,
	}))
	fmt.Println(report(g, backend, numNodes, result))
}

// report renders the summary, the claims and the nodes left unassigned.
func report(g *graph.Graph, backend backends.Backend, numNodes int, result *scheduler.Result) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Summary"))
	sb.WriteString("\n")
	table := newPlainTable(nil, lipgloss.Right, lipgloss.Left)
	table.Row(false, "graph", g.Name())
	table.Row(false, "backend", fmt.Sprintf("%s (%s)", backend.Name(), backend.Description()))
	table.Row(false, "# nodes", fmt.Sprintf("%s -> %s", humanize.Comma(int64(numNodes)), humanize.Comma(int64(g.NumNodes()))))
	table.Row(false, "fusion", fmt.Sprintf("%v", result.Fused))
	table.Row(false, "# requested", humanize.Comma(int64(len(result.Requests.Nodes()))))
	table.Row(false, "# claims", humanize.Comma(int64(len(result.Claims))))
	table.Row(false, "# assigned", humanize.Comma(int64(len(result.Nodes))))
	table.Row(len(result.MissingKernels) > 0, "missing kernels", strings.Join(result.MissingKernels, ", "))
	sb.WriteString(table.Render())
	sb.WriteString("\n")

	sb.WriteString(titleStyle.Render("Claims"))
	sb.WriteString("\n")
	table = newPlainTable([]string{"Claim", "Nodes", "Ops", "Fused Op"}, lipgloss.Right, lipgloss.Left)
	for i, c := range result.Claims {
		nodes := xslices.Map(c.Nodes(), func(idx graph.NodeIndex) string { return fmt.Sprintf("#%d", idx) })
		fusedOp := "-"
		if meta := c.MetaDef; meta != nil {
			fusedOp = formatOp(meta.Domain, meta.OpType, meta.Attributes)
		} else if c.Len() == 1 {
			// Activations fused in the first phase are already materialized.
			if node := g.Node(c.Nodes()[0]); node != nil && node.Attributes.Has(partition.AttrActivation) {
				fusedOp = formatOp(node.Domain, node.OpType, node.Attributes)
			}
		}
		table.Row(result.WithoutKernel.Has(c.ID()),
			humanize.Comma(int64(c.ID())), strings.Join(nodes, ", "), strings.Join(result.ClaimOpTypes[i], ", "), fusedOp)
	}
	sb.WriteString(table.Render())
	sb.WriteString("\n")

	sb.WriteString(titleStyle.Render("Unassigned"))
	sb.WriteString("\n")
	table = newPlainTable([]string{"Node", "Op", "Name"}, lipgloss.Right, lipgloss.Left)
	for _, node := range g.Nodes() {
		if node.IsAssigned() {
			continue
		}
		table.Row(false, fmt.Sprintf("#%d", node.Index()), formatOp(node.Domain, node.OpType, nil), node.Name)
	}
	sb.WriteString(table.Render())
	return sb.String()
}

// formatOp returns "<domain>.<op>+<activation>", omitting the ONNX domain and a missing activation.
func formatOp(domain, opType string, attrs graph.Attributes) string {
	op := opType
	if domain != graph.DomainONNX {
		op = domain + "." + op
	}
	if activation := attrs.String(partition.AttrActivation, ""); activation != "" {
		op += "+" + activation
	}
	return op
}
