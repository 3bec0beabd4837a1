package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cacheleak/config"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the resolved profile as YAML.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		list, _ := cmd.Flags().GetBool("list")
		if list {
			fmt.Println(strings.Join(config.BuiltinNames(), "\n"))
			return nil
		}

		data, err := config.Marshal(profile)
		if err != nil {
			return err
		}

		fmt.Print(string(data))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().Bool("list", false, "List the built-in profiles.")
}
