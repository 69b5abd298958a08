package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/dbsts/internal/config"
)

func NewValidateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long: `Parse and validate the configuration file without starting the
service. Exits non-zero when the file is missing, violates the schema
or fails semantic checks.

Examples:
  dbsts validate --config /etc/dbsts/sts.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return err
			}

			def := cfg.Definition
			fmt.Printf("Configuration OK: %s\n", cfg.Path)
			fmt.Printf("  adapter:   %s (%s:%d/%s)\n",
				def.Adapter.Platform, def.Adapter.Host, def.Adapter.Port, def.Adapter.Database)
			fmt.Printf("  audit:     %s:%d/%s\n",
				def.Audit.Host, def.Audit.Port, def.Audit.Database)
			fmt.Printf("  duration:  %ds\n", def.Credentials.Duration)
			fmt.Printf("  retention: %s\n", def.Credentials.Retention)
			if def.JWT.Issuer != "" {
				fmt.Printf("  jwt:       issuer %s\n", def.JWT.Issuer)
			} else {
				fmt.Println("  jwt:       disabled (direct identity only)")
			}
			return nil
		},
	}
}
