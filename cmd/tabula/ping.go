package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/tabula/internal/llmcall"
	"github.com/jackzampolin/tabula/internal/output"
)

var pingProfile string

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that a model profile answers",
	Long: `Send a single "Hi" to the selected profile, without retries, and report
whether it answered and how long it took.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadServices(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		cfg := svc.Config.Get()

		profile, err := cfg.ProfileName(pingProfile)
		if err != nil {
			return err
		}
		client, err := svc.Registry.Client(ctx, profile)
		if err != nil {
			return err
		}

		inv := llmcall.NewInvoker(llmcall.Config{
			Client:   client,
			Limiter:  svc.Registry.Limiter(profile),
			Recorder: svc.Recorder,
			Logger:   svc.Logger.With("profile", profile),
		})

		start := time.Now()
		reply, err := inv.Invoke(ctx, "Hi", 1)
		if err != nil {
			return err
		}

		result := pingResult{
			Profile: profile,
			Model:   cfg.Profiles[profile].Model,
			Success: reply != "",
			Latency: time.Since(start).Round(time.Millisecond).String(),
			Reply:   reply,
		}
		if calls := svc.Recorder.Calls(); len(calls) > 0 {
			last := calls[len(calls)-1]
			result.Error = last.Error
			if last.Model != "" {
				result.Model = last.Model
			}
		}
		return output.Print(result)
	},
}

type pingResult struct {
	Profile string `json:"profile" yaml:"profile"`
	Model   string `json:"model" yaml:"model"`
	Success bool   `json:"success" yaml:"success"`
	Latency string `json:"latency" yaml:"latency"`
	Reply   string `json:"reply,omitempty" yaml:"reply,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func init() {
	pingCmd.Flags().StringVar(&pingProfile, "profile", "", "model profile (default: defaults.profile from config)")
}
