package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/bom-matcher/internal/knowledge"
)

var (
	kbWorkflowID  string
	kbFingerprint string
	kbName        string
	kbPartNumber  string
	kbVendor      string
	kbFormat      string
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Inspect the match knowledge base",
}

var kbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print knowledge base statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, err := requireKnowledge(cmd)
		if err != nil {
			return err
		}
		defer kb.Close() //nolint:errcheck

		return writeOutput(os.Stdout, kbFormat, kb.ProcessingStats(cmd.Context(), kbWorkflowID))
	},
}

var kbLookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Print the newest knowledge entry for a material",
	Long:  "Looks up by --fingerprint, or derives the fingerprint from --name, --part-number and --vendor.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fp, err := lookupFingerprint()
		if err != nil {
			return err
		}

		kb, err := requireKnowledge(cmd)
		if err != nil {
			return err
		}
		defer kb.Close() //nolint:errcheck

		entry, err := kb.Lookup(cmd.Context(), fp)
		if err != nil {
			return err
		}
		if entry == nil {
			return eris.Errorf("no knowledge entry for fingerprint %q", fp)
		}
		return writeOutput(os.Stdout, kbFormat, entry)
	},
}

func lookupFingerprint() (string, error) {
	switch {
	case kbFingerprint != "" && kbName != "":
		return "", eris.New("use either --fingerprint or --name, not both")
	case kbFingerprint != "":
		return kbFingerprint, nil
	case kbName != "":
		return knowledge.Fingerprint(kbName, kbPartNumber, kbVendor), nil
	default:
		return "", eris.New("one of --fingerprint or --name is required")
	}
}

func requireKnowledge(cmd *cobra.Command) (*knowledge.KnowledgeBase, error) {
	st, err := knowledge.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open knowledge base")
	}
	return knowledge.New(st, nil), nil
}

func init() {
	kbCmd.PersistentFlags().StringVar(&kbFormat, "format", "json", "output format: json or yaml")
	kbStatsCmd.Flags().StringVar(&kbWorkflowID, "workflow-id", "", "count entries recorded by this workflow")
	kbLookupCmd.Flags().StringVar(&kbFingerprint, "fingerprint", "", "material fingerprint")
	kbLookupCmd.Flags().StringVar(&kbName, "name", "", "material name")
	kbLookupCmd.Flags().StringVar(&kbPartNumber, "part-number", "", "material part number")
	kbLookupCmd.Flags().StringVar(&kbVendor, "vendor", "", "material vendor")
	kbCmd.AddCommand(kbStatsCmd, kbLookupCmd)
	rootCmd.AddCommand(kbCmd)
}
