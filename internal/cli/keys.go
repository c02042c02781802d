package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AlfRonDon/NeuraReport-sub005/internal/keys"
)

var keysFlags scopeFlags

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Resolve the legal filter values of templates",
	Long: `Resolve the legal values of each template's mapping keys within a
connection and date range.

Examples:
  neurareport keys -t "t1:Shift Report:pdf:machine" --from 2024-01-01 --to 2024-01-31
  neurareport keys -t t1:::machine+line --from 2024-01-01 --to 2024-01-31 --yaml`,
	RunE: runKeys,
}

func init() {
	keysFlags.register(keysCmd)
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	templates, err := keysFlags.parseTemplates()
	if err != nil {
		return err
	}
	rng, err := keysFlags.parseRange()
	if err != nil {
		return err
	}

	ctx := context.Background()
	resolver := keys.NewResolver(client, nil)
	errs := resolver.ResolveAll(ctx, templates, keysFlags.connectionID(), rng)

	if outputYAML {
		out := make(map[string]any, len(templates))
		for _, tpl := range templates {
			if err := errs[tpl.ID]; err != nil {
				out[tpl.ID] = map[string]string{"error": err.Error()}
				continue
			}
			out[tpl.ID] = resolver.Options(tpl.ID)
		}
		return printYAML(out)
	}

	for _, tpl := range templates {
		fmt.Printf("%s (%s)\n", tpl.Name, tpl.ID)
		if err := errs[tpl.ID]; err != nil {
			fmt.Printf("  error: %v\n", err)
			continue
		}
		options := resolver.Options(tpl.ID)
		if len(options) == 0 {
			fmt.Println("  no mapping keys")
			continue
		}

		tokens := make([]string, 0, len(options))
		for token := range options {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)

		for _, token := range tokens {
			values := options[token]
			fmt.Printf("  %s (%d values)\n", token, len(values))
			for _, v := range values {
				fmt.Printf("    - %s\n", v)
			}
		}
	}
	return nil
}
