// Package searchcmder provides the search command for similarity search
// over the configured collection.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/spool/cmd/spool/wiring"
	"github.com/papercomputeco/spool/pkg/logger"
	"github.com/papercomputeco/spool/pkg/vector"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const searchLongDesc string = `Search the collection for records similar to a query.

The query text is embedded with the configured embedder and the resulting
vector is searched against the collection. Pass --vector to search with a
raw embedding instead, skipping the embedder entirely.

Filters restrict results to records whose payload matches every key=value
pair. Results are printed in descending score order, most similar first.

Use --quiet to output only record ids, one per line, for piping.

Examples:
  spool search "how to configure logging"
  spool search "error handling" --limit 10 --filter topic=go
  spool search --vector '[0.1, 0.2, 0.3]' --collection notes
  spool search "charm CLI" --quiet | xargs -n1 spool record get`

const searchShortDesc string = "Search the collection"

type searchCommander struct {
	query   string
	limit   int
	filters []string
	rawVec  string
	quiet   bool

	store     wiring.StoreFlags
	embedding wiring.EmbeddingFlags

	debug bool
	v     *viper.Viper
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	var registered []string
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			v, err := wiring.InitCommand(cmd, registered)
			if err != nil {
				return err
			}
			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				cmder.query = args[0]
			}
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", 5, "Number of results to return")
	cmd.Flags().StringSliceVarP(&cmder.filters, "filter", "f", nil, "Payload filter as key=value (repeatable)")
	cmd.Flags().StringVar(&cmder.rawVec, "vector", "", "Search with a raw JSON vector instead of embedding the query")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only record ids, one per line (for piping)")

	registered = wiring.RegisterStoreFlags(cmd, &cmder.store)
	registered = append(registered, wiring.RegisterEmbeddingFlags(cmd, &cmder.embedding)...)

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
	if c.query == "" && c.rawVec == "" {
		return fmt.Errorf("a query or --vector is required")
	}

	filters, err := ParseFilters(c.filters)
	if err != nil {
		return err
	}

	var queryVec []float32
	if c.rawVec != "" {
		if err := json.Unmarshal([]byte(c.rawVec), &queryVec); err != nil {
			return fmt.Errorf("parsing --vector: %w", err)
		}
	}

	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	driver, err := wiring.BuildDriver(c.v, log)
	if err != nil {
		return fmt.Errorf("building vector driver: %w", err)
	}
	defer driver.Close()

	if queryVec == nil {
		embedder, err := wiring.BuildEmbedder(c.v)
		if err != nil {
			return fmt.Errorf("building embedder: %w", err)
		}
		defer embedder.Close()

		queryVec, err = embedder.Embed(ctx, c.query)
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
	}

	results, err := driver.Search(ctx, c.query, queryVec, c.limit, filters)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if len(results) == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range results {
			fmt.Println(result.ID)
		}
		return nil
	}

	label := c.query
	if label == "" {
		label = "(raw vector)"
	}
	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", label)),
	)

	for i, result := range results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result vector.SearchResult) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		idStyle.Render(result.ID),
	)

	if text, ok := result.Payload["text"].(string); ok && text != "" {
		preview := strings.ReplaceAll(text, "\n", " ")
		if len(preview) > 80 {
			preview = preview[:77] + "..."
		}
		fmt.Printf("  %s\n", previewStyle.Render(preview))
	}

	if extras := formatExtras(result.Payload); extras != "" {
		fmt.Printf("  %s\n", dimStyle.Render(extras))
	}

	fmt.Println()
}

// formatExtras renders the non-text payload keys as sorted key=value pairs.
func formatExtras(payload map[string]any) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		if k == "text" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, payload[k]))
	}
	return strings.Join(pairs, "  ")
}

// ParseFilters turns key=value strings into a payload filter map.
// Exported so other commands with --filter flags can reuse it.
func ParseFilters(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	filters := make(map[string]any, len(raw))
	for _, pair := range raw {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid filter %q (expected key=value)", pair)
		}
		filters[key] = value
	}
	return filters, nil
}
