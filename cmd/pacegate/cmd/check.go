package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pacegate/pacegate/internal/config"
	"github.com/pacegate/pacegate/internal/service"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long: `Load and validate the configuration, then print the resulting
throttle policies and the policy-set fingerprint.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	reg, err := service.NewRegistry(cfg.Policies, nil)
	if err != nil {
		return err
	}

	if file := config.ConfigFileUsed(); file != "" {
		fmt.Printf("config: %s\n", file)
	} else {
		fmt.Println("config: environment only")
	}

	byName := make(map[string]config.PolicyConfig, len(cfg.Policies))
	for _, p := range cfg.Policies {
		byName[p.Name] = p
	}
	fmt.Printf("policies (%d):\n", len(cfg.Policies))
	for _, name := range reg.Names() {
		p := byName[name]
		fmt.Printf("  %-16s %3d req / %-6s retry %s\n",
			p.Name, p.RequestsPerWindow, p.Window, p.RetryInterval)
	}
	fmt.Printf("fingerprint: %016x\n", reg.Fingerprint())

	return nil
}
