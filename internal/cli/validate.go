package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/c360/pointmap/schema"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate <identifier>",
		Short: "Check an identifier against the EnOS grammar",
		Long: "Check an identifier against the EnOS point grammar: " +
			"PREFIX_<raw|calc>_<measurement>[_<qualifier>]. Prints every " +
			"violated rule and exits non-zero when invalid.",
		Args: cobra.ExactArgs(1),
		Run:  runValidate,
	}

	cmd.Flags().String("device", "", "Device type to check the prefix against")

	RootCmd.AddCommand(cmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	device, _ := cmd.Flags().GetString("device")

	violations := schema.Check(args[0], device)
	if len(violations) == 0 {
		fmt.Println("valid")
		return
	}

	for _, v := range violations {
		fmt.Printf("%s: %s\n", v.Rule, v.Message)
	}
	os.Exit(1)
}
