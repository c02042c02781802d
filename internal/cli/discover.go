package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/discovery"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/keys"
	"github.com/AlfRonDon/NeuraReport-sub005/internal/models"
)

var (
	discoverFlags       scopeFlags
	discoverDimension   string
	discoverMetric      string
	discoverAggregation string
	discoverBucket      string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the candidate batches of templates",
	Long: `Discover the candidate batches of each template within a date range,
after applying key filters. Optionally regroup the result along a time,
category, or numeric axis.

Examples:
  neurareport discover -t t1 --from 2024-01-01 --to 2024-01-31
  neurareport discover -t "t1:Shift Report:pdf:machine" -k machine=__all__ \
      --from 2024-01-01 --to 2024-01-31 --dimension time --bucket day`,
	RunE: runDiscover,
}

func init() {
	discoverFlags.register(discoverCmd)
	discoverCmd.Flags().StringVar(&discoverDimension, "dimension", "", "resample dimension (time, category, ...)")
	discoverCmd.Flags().StringVar(&discoverMetric, "metric", models.MetricRows, "resample metric")
	discoverCmd.Flags().StringVar(&discoverAggregation, "aggregation", models.AggregationSum, "sum, count, average, min, max")
	discoverCmd.Flags().StringVar(&discoverBucket, "bucket", "auto", "temporal bucket: auto, hour, day, week")
	rootCmd.AddCommand(discoverCmd)
}

// buildSession resolves keys, applies selections, and returns a discovery
// session scoped to the flags.
func buildSession(ctx context.Context, flags *scopeFlags) (*discovery.Session, *keys.Builder, error) {
	templates, err := flags.parseTemplates()
	if err != nil {
		return nil, nil, err
	}
	rng, err := flags.parseRange()
	if err != nil {
		return nil, nil, err
	}
	keySelections, err := flags.parseKeySelections()
	if err != nil {
		return nil, nil, err
	}

	resolver := keys.NewResolver(client, nil)
	resolver.ResolveAll(ctx, templates, flags.connectionID(), rng)

	selections := keys.NewSelectionStore()
	for _, tpl := range templates {
		for token, values := range keySelections {
			selections.Set(tpl.ID, token, values)
		}
	}
	builder := keys.NewBuilder(selections, resolver.Options)

	session := discovery.NewSession(discovery.NewEngine(client, nil), nil)
	session.SetScope(templates, flags.connectionID(), rng)
	return session, builder, nil
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	session, builder, err := buildSession(ctx, &discoverFlags)
	if err != nil {
		return err
	}

	outcomes := session.DiscoverAll(ctx, builder.Build)

	if outputYAML {
		return printYAML(map[string]any{
			"outcomes": outcomes,
			"results":  session.Results(),
		})
	}

	for _, outcome := range outcomes {
		tpl, _ := session.Template(outcome.TemplateID)
		fmt.Printf("%s (%s)\n", tpl.Name, tpl.ID)
		if outcome.Err != nil {
			fmt.Printf("  error: %v\n", outcome.Err)
			continue
		}

		result := session.Result(outcome.TemplateID)
		if result == nil {
			continue
		}
		fmt.Printf("  batches: %d  rows: %d\n", result.BatchCount, result.RowsTotal)

		if discoverDimension != "" {
			if err := printResample(session, outcome.TemplateID, result); err != nil {
				fmt.Printf("  resample error: %v\n", err)
			}
		}
	}
	return nil
}

func printResample(session *discovery.Session, templateID string, result *models.DiscoveryResult) error {
	cfg := models.ResampleConfig{
		Dimension:   discoverDimension,
		Metric:      discoverMetric,
		Aggregation: discoverAggregation,
		Bucket:      discoverBucket,
	}
	series, err := session.Resample(templateID, cfg, nil)
	if err != nil {
		return err
	}

	fmt.Printf("  %s by %s (%s):\n", discoverMetric, discoverDimension, discoverAggregation)
	for _, point := range series {
		fmt.Printf("    %-24s %10.2f  (%d batches)\n", point.Label, point.Value, point.Count)
	}
	fmt.Printf("    %-24s %10.2f\n", "total", series.Total())
	return nil
}
