package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tabula/internal/config"
	"github.com/jackzampolin/tabula/internal/home"
	"github.com/jackzampolin/tabula/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and initialize configuration",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to the home directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !configInitForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		return output.Print(map[string]string{"written": h.ConfigPath()})
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Print the configuration after defaults, config file and TABULA_ environment overrides. API keys are not resolved and literal keys are masked.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices(cmd)
		if err != nil {
			return err
		}
		return output.Print(struct {
			File   string         `json:"file,omitempty" yaml:"file,omitempty"`
			Config *config.Config `json:"config" yaml:"config"`
		}{
			File:   svc.Config.ConfigFile(),
			Config: svc.Config.Get().Redacted(),
		})
	},
}

var configProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List model profiles and whether their API keys resolve",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices(cmd)
		if err != nil {
			return err
		}
		return output.Print(svc.Registry.List())
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configProfilesCmd)
}
