package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/okafor/toolmux/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that configured tool binaries are installed",
	Long: `Probe every enabled tool in the catalog: verify the binary is on
PATH and report its version.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	reg, store, err := openRegistry()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	checker := doctor.NewChecker(nil, zerolog.Nop())
	results := checker.CheckTools(ctx, reg.ListAll())

	if len(results) == 0 {
		fmt.Println("No enabled tools to check")
		return nil
	}

	fmt.Printf("%-16s %-9s %-12s %s\n", "TOOL", "STATUS", "VERSION", "DETAIL")
	for _, r := range results {
		fmt.Printf("%-16s %-9s %-12s %s\n", r.Tool, r.Status, r.Version, r.Detail)
	}

	if !doctor.Healthy(results) {
		return fmt.Errorf("some tools are missing or outdated")
	}
	fmt.Println("\nAll tools healthy")
	return nil
}
