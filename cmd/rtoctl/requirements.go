package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/rtoval/internal/requirements"
)

var requirementsCmd = &cobra.Command{
	Use:   "requirements",
	Short: "Inspect and import unit requirements",
}

var requirementsListCmd = &cobra.Command{
	Use:   "list [unit-code]",
	Short: "List the requirements a session over a unit validates",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequirementsList,
}

var requirementsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Replace a unit's requirements from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequirementsImport,
}

var (
	listDocumentType string
	listNoFixed      bool
)

func init() {
	requirementsListCmd.Flags().StringVar(&listDocumentType, "document-type", "unit", "Document type")
	requirementsListCmd.Flags().BoolVar(&listNoFixed, "no-fixed", false, "Omit assessment conditions and instructions")

	requirementsCmd.AddCommand(requirementsListCmd)
	requirementsCmd.AddCommand(requirementsImportCmd)
	rootCmd.AddCommand(requirementsCmd)
}

func runRequirementsList(cmd *cobra.Command, args []string) error {
	query := url.Values{
		"unit_code":     {args[0]},
		"document_type": {listDocumentType},
		"include_fixed": {strconv.FormatBool(!listNoFixed)},
	}

	var reqs []requirements.Requirement
	if err := newClient().get(cmd.Context(), "/requirements", query, &reqs); err != nil {
		return err
	}

	for _, r := range reqs {
		cmd.Printf("%-26s %-6s %s\n", r.Type, r.Number, r.Text)
	}
	cmd.Printf("Total: %d requirements\n", len(reqs))
	return nil
}

func runRequirementsImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var ic requirements.ImportCommand
	if err := yaml.Unmarshal(data, &ic); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	var res requirements.ImportResult
	if err := newClient().post(cmd.Context(), "/requirements/import", ic, &res); err != nil {
		return err
	}

	cmd.Printf("%s: removed %d, inserted %d\n", res.UnitCode, res.Removed, res.Inserted)
	return nil
}
