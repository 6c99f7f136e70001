package internal

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"
	"github.com/spf13/cobra"

	"github.com/goplus/spk/internal/concretize"
	"github.com/goplus/spk/pkgs/spec"
)

var (
	specLong  bool
	specTypes bool
	specTests string
	specYAML  bool
)

var specCmd = &cobra.Command{
	Use:   "spec [flags] <spec>...",
	Short: "Concretize specs and print the result",
	Long: `Spec concretizes each abstract spec and prints the resulting dependency
tree. Every package is shown once; later occurrences are omitted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpec,
}

func init() {
	specCmd.Flags().BoolVarP(&specLong, "long", "l", false, "show short hashes")
	specCmd.Flags().BoolVarP(&specTypes, "types", "t", false, "show dependency types")
	specCmd.Flags().StringVar(&specTests, "test", "", "include test dependencies of the roots (root) or of every package (all)")
	specCmd.Flags().BoolVarP(&specYAML, "yaml", "y", false, "print the concrete DAGs as YAML")
	rootCmd.AddCommand(specCmd)
}

func parseTestMode(s string) (concretize.TestMode, error) {
	switch s {
	case "":
		return concretize.TestsNone, nil
	case "root":
		return concretize.TestsRoot, nil
	case "all":
		return concretize.TestsAll, nil
	}
	return 0, fmt.Errorf("invalid --test value %q: want root or all", s)
}

func runSpec(cmd *cobra.Command, args []string) error {
	tests, err := parseTestMode(specTests)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	s, err := loadSession(ctx)
	if err != nil {
		return err
	}
	roots, dags, err := s.concretize(ctx, args, tests, false)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for i, d := range dags {
		if specYAML {
			data, err := d.EncodeYAML()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "---\n%s", data)
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, titleStyle.Render("Input spec"))
		fmt.Fprintln(out, roots[i])
		fmt.Fprintln(out, titleStyle.Render("Concretized"))
		printTree(out, d, treeOptions{hashLen: 7, long: specLong, types: specTypes})
	}
	return nil
}

type treeOptions struct {
	hashLen int
	long    bool // show hashes
	types   bool // show dependency types
}

// typesColumn renders types as a fixed width column such as "[bl  ]".
func typesColumn(t spec.DepTypes) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for _, c := range []struct {
		t spec.DepTypes
		b byte
	}{{spec.Build, 'b'}, {spec.Link, 'l'}, {spec.Run, 'r'}, {spec.Test, 't'}} {
		if t.Has(c.t) {
			sb.WriteByte(c.b)
		} else {
			sb.WriteByte(' ')
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

func nodeLabel(s spec.ConcreteSpec, types spec.DepTypes, opts treeOptions) string {
	var parts []string
	if opts.long {
		parts = append(parts, hashStyle.Render(s.ShortHash(opts.hashLen)))
	}
	if opts.types {
		parts = append(parts, typesStyle.Render(typesColumn(types)))
	}
	return strings.Join(append(parts, s.String()), " ")
}

// specTree builds the tree below d's root, showing every node once.
func specTree(d *spec.DAG, opts treeOptions) *tree.Tree {
	seen := make(map[string]bool)
	var build func(s spec.ConcreteSpec, types spec.DepTypes) *tree.Tree
	build = func(s spec.ConcreteSpec, types spec.DepTypes) *tree.Tree {
		seen[s.Name()] = true
		t := tree.Root(nodeLabel(s, types, opts))
		for _, e := range s.Dependencies() {
			if seen[e.Spec.Name()] {
				continue
			}
			t.Child(build(e.Spec, e.Types))
		}
		return t
	}
	return build(d.Root(), 0).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(branchStyle)
}

func printTree(w io.Writer, d *spec.DAG, opts treeOptions) {
	fmt.Fprintln(w, specTree(d, opts))
}
