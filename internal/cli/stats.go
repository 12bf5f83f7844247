package cli

import (
	"encoding/json"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show mapping memory statistics",
		Run:   runStats,
	}

	cmd.Flags().Bool("dump", false, "Dump full mapping records including examples")
	cmd.Flags().String("device", "", "Restrict dump to one device type")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, _ []string) {
	dump, _ := cmd.Flags().GetBool("dump")
	device, _ := cmd.Flags().GetString("device")

	store, err := openStore()
	if err != nil {
		exitErr("open memory store", err)
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}

	b, _ := json.MarshalIndent(stats, "", "  ")
	fmt.Println(string(b))

	if !dump {
		return
	}

	records, err := store.Records(cmd.Context(), device, -1)
	if err != nil {
		exitErr("records", err)
	}
	spew.Fdump(cmd.OutOrStdout(), records)
}
