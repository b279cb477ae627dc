package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/rtoval/internal/prompts"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Manage prompt templates",
}

var promptsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Create prompts from a YAML file",
	Long:  `Creates every prompt listed under "prompts" in the file. Each becomes the next version of its key.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsImport,
}

var promptsDefaultCmd = &cobra.Command{
	Use:   "default [prompt-id]",
	Short: "Make a prompt the default of its key",
	Args:  cobra.ExactArgs(1),
	RunE:  runPromptsDefault,
}

var promptsResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Show the default prompt for a key",
	Args:  cobra.NoArgs,
	RunE:  runPromptsResolve,
}

var (
	resolveTask            string
	resolveRequirementType string
	resolveDocumentType    string
)

// promptFile is the layout of a prompts import file.
type promptFile struct {
	Prompts []prompts.CreateCommand `yaml:"prompts"`
}

func init() {
	promptsResolveCmd.Flags().StringVar(&resolveTask, "task", string(prompts.TaskValidation), "Task type")
	promptsResolveCmd.Flags().StringVar(&resolveRequirementType, "requirement-type", "", "Requirement type")
	promptsResolveCmd.Flags().StringVar(&resolveDocumentType, "document-type", "unit", "Document type")
	promptsResolveCmd.MarkFlagRequired("requirement-type")

	promptsCmd.AddCommand(promptsImportCmd)
	promptsCmd.AddCommand(promptsDefaultCmd)
	promptsCmd.AddCommand(promptsResolveCmd)
	rootCmd.AddCommand(promptsCmd)
}

func runPromptsImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	var file promptFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if len(file.Prompts) == 0 {
		return fmt.Errorf("%s: no prompts", args[0])
	}

	c := newClient()
	for _, p := range file.Prompts {
		var created prompts.Prompt
		if err := c.post(cmd.Context(), "/prompts", p, &created); err != nil {
			return fmt.Errorf("create %q: %w", p.Name, err)
		}
		cmd.Printf("%s  %s v%d default=%t\n", created.ID, created.Key(), created.Version, created.IsDefault)
	}

	cmd.Printf("Imported %d prompts\n", len(file.Prompts))
	return nil
}

func runPromptsDefault(cmd *cobra.Command, args []string) error {
	var p prompts.Prompt
	if err := newClient().post(cmd.Context(), "/prompts/"+args[0]+"/default", nil, &p); err != nil {
		return err
	}
	cmd.Printf("%s is now the default for %s\n", p.ID, p.Key())
	return nil
}

func runPromptsResolve(cmd *cobra.Command, args []string) error {
	query := url.Values{
		"task_type":        {resolveTask},
		"requirement_type": {resolveRequirementType},
		"document_type":    {resolveDocumentType},
	}

	var res prompts.Resolution
	if err := newClient().get(cmd.Context(), "/prompts/resolve", query, &res); err != nil {
		return err
	}

	cmd.Printf("%s v%d (%s)\n", res.Prompt.Name, res.Prompt.Version, res.Prompt.ID)
	cmd.Printf("Placeholders: %v\n\n", res.Placeholders)
	cmd.Println(res.Prompt.Text)
	return nil
}
