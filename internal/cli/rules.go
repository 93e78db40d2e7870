package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/agrichain/cropadvisor/internal/agro"
	"github.com/agrichain/cropadvisor/internal/config"
	"github.com/agrichain/cropadvisor/internal/rules"
)

// rulesOutput is the JSON shape of a rule table.
type rulesOutput struct {
	Version string                  `json:"version"`
	Crops   map[string][]rules.Rule `json:"crops"`
}

// newRulesCmd creates the rules command group.
func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rules", Short: "Inspect and validate the agronomic rule table"}
	cmd.AddCommand(NewRulesListCmd(), NewRulesValidateCmd())
	return cmd
}

// NewRulesListCmd creates the rules list command.
func NewRulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [crop...]",
		Short: "Show the rules used to score crops",
		Long: `Shows the weighted parameter ranges of the active rule table: the embedded
table, or the file named by data.rules_file. Crops may be given to narrow the
listing.`,
		Example: `  # Every crop
  cropadvisor rules list

  # Only wheat and rice, as JSON
  cropadvisor rules list wheat rice -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRulesList(cmd, args)
		},
	}
}

func runRulesList(cmd *cobra.Command, args []string) error {
	table, err := loadRules(config.GetGlobalConfig().Data.RulesFile)
	if err != nil {
		return err
	}

	crops := table.Crops()
	if len(args) > 0 {
		crops = crops[:0:0]
		for _, arg := range args {
			crop, cropErr := validateCrop(arg)
			if cropErr != nil {
				return cropErr
			}
			crops = append(crops, crop)
		}
	}

	out := rulesOutput{Version: table.Version().String(), Crops: make(map[string][]rules.Rule, len(crops))}
	for _, crop := range crops {
		out.Crops[crop] = table.Rules(crop)
	}

	if outputFormat(cmd) == outputJSON {
		return writeJSON(cmd.OutOrStdout(), out)
	}

	r := report{
		title:  "Rule table",
		facts:  [][2]string{{"Version", out.Version}},
		header: []string{"CROP", "PARAMETER", "RANGE", "WEIGHT"},
	}
	for _, crop := range crops {
		rs := out.Crops[crop]
		if len(rs) == 0 {
			r.rows = append(r.rows, []string{crop, "-", "no rules (neutral score)", "-"})
			continue
		}
		for _, rule := range rs {
			r.rows = append(r.rows, []string{
				crop,
				rule.Parameter,
				ruleRange(rule),
				strconv.FormatFloat(rule.Weight, 'f', -1, 64),
			})
		}
	}
	return r.render(cmd.OutOrStdout())
}

func ruleRange(r rules.Rule) string {
	if r.Categorical() {
		return r.Target
	}
	return fmt.Sprintf("%g - %g", r.Min, r.Max)
}

// NewRulesValidateCmd creates the rules validate command.
func NewRulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a rule table file",
		Long: `Validates a rule table override: the file argument, or data.rules_file, or the
embedded table when neither is set. The table's major version must match the
version this build supports.`,
		Example: `  cropadvisor rules validate my-rules.yaml`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetGlobalConfig().Data.RulesFile
			if len(args) == 1 {
				path = args[0]
			}
			return runRulesValidate(cmd, path)
		},
	}
}

func runRulesValidate(cmd *cobra.Command, path string) error {
	table, err := loadRules(path)
	if err != nil {
		return fmt.Errorf("rule table validation failed: %w", err)
	}

	source := path
	if source == "" {
		source = "embedded table"
	}

	var missing []string
	for _, crop := range agro.Crops() {
		if len(table.Rules(crop)) == 0 {
			missing = append(missing, crop)
		}
	}

	cmd.Printf("Rule table is valid: %s (version %s, %d crops)\n", source, table.Version(), len(table.Crops()))
	for _, crop := range missing {
		cmd.Printf("  - %s has no rules and will score the neutral default\n", crop)
	}
	return nil
}
