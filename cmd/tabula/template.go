package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tabula/internal/output"
	"github.com/jackzampolin/tabula/internal/prompts"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"templates"},
	Short:   "Manage saved prompt templates",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the built-in and saved templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices(cmd)
		if err != nil {
			return err
		}
		templates, err := svc.Templates.List()
		if err != nil {
			return err
		}

		type entry struct {
			Name         string   `json:"name" yaml:"name"`
			Delimiter    string   `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
			BuiltIn      bool     `json:"built_in,omitempty" yaml:"built_in,omitempty"`
			CreatedAt    string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
			Placeholders []string `json:"placeholders" yaml:"placeholders"`
		}
		entries := make([]entry, 0, len(templates))
		for _, t := range templates {
			e := entry{
				Name:         t.Name,
				Delimiter:    t.Delimiter,
				BuiltIn:      t.BuiltIn,
				Placeholders: prompts.ExtractPlaceholders(t.Content),
			}
			if !t.CreatedAt.IsZero() {
				e.CreatedAt = t.CreatedAt.Format("2006-01-02 15:04:05")
			}
			entries = append(entries, e)
		}
		return output.Print(entries)
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices(cmd)
		if err != nil {
			return err
		}
		t, err := svc.Templates.Get(args[0])
		if err != nil {
			return err
		}
		return output.Print(t)
	},
}

var templateSaveFlags struct {
	content   string
	file      string
	delimiter string
}

var templateSaveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save a template from text or a file",
	Long: `Save a named prompt template under ~/.tabula/templates/NAME.yaml,
replacing any template of the same name.

Examples:
  tabula template save screening --file screening.txt --delimiter "|"
  tabula template save quick --content "Classify: {merged_text}. Answer A{delimiter}B"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices(cmd)
		if err != nil {
			return err
		}

		content := templateSaveFlags.content
		if templateSaveFlags.file != "" {
			data, err := os.ReadFile(templateSaveFlags.file)
			if err != nil {
				return fmt.Errorf("failed to read template file: %w", err)
			}
			content = string(data)
		}
		for _, warning := range prompts.CheckPlaceholders(content) {
			svc.Logger.Warn("prompt template", "warning", warning)
		}

		saved, err := svc.Templates.Save(prompts.Template{
			Name:      args[0],
			Content:   content,
			Delimiter: templateSaveFlags.delimiter,
		})
		if err != nil {
			return err
		}
		return output.Print(saved)
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:     "delete NAME",
	Aliases: []string{"rm"},
	Short:   "Delete a saved template",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices(cmd)
		if err != nil {
			return err
		}
		if err := svc.Templates.Delete(args[0]); err != nil {
			return err
		}
		return output.Print(map[string]string{"deleted": args[0]})
	},
}

func init() {
	f := templateSaveCmd.Flags()
	f.StringVar(&templateSaveFlags.content, "content", "", "template text")
	f.StringVar(&templateSaveFlags.file, "file", "", "read template text from a file")
	f.StringVar(&templateSaveFlags.delimiter, "delimiter", prompts.DefaultDelimiter, "delimiter the template asks for")
	templateSaveCmd.MarkFlagsOneRequired("content", "file")
	templateSaveCmd.MarkFlagsMutuallyExclusive("content", "file")

	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateShowCmd)
	templateCmd.AddCommand(templateSaveCmd)
	templateCmd.AddCommand(templateDeleteCmd)
}
