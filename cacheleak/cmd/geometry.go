package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var geometryCmd = &cobra.Command{
	Use:   "geometry [address...]",
	Short: "Show the cache geometry of the profile and split addresses.",
	Args:  cobra.ArbitraryArgs,
	RunE: func(_ *cobra.Command, args []string) error {
		params := profile.Params()
		masks := params.Masks()
		bold := color.New(color.Bold).SprintfFunc()

		fmt.Printf("Cache:\t\t%s\n", bold("%s", params))
		fmt.Printf("Capacity:\t%s\n", bold("%d bytes", params.CapacityBytes()))
		fmt.Printf("Way stride:\t%s\n", bold("0x%x", params.WayStride()))
		fmt.Printf("Offset mask:\t%s\n", bold("0x%x", masks.Offset))
		fmt.Printf("Set mask:\t%s\n", bold("0x%x", masks.Set))
		fmt.Printf("Tag mask:\t%s\n", bold("0x%x", masks.Tag))

		if len(args) == 0 {
			return nil
		}

		tbl := tablewriter.NewWriter(os.Stdout)
		tbl.SetHeader([]string{"Address", "Tag", "Set", "Offset"})
		tbl.SetBorder(true)

		for _, arg := range args {
			addr, err := strconv.ParseUint(arg, 0, 64)
			if err != nil {
				return fmt.Errorf("address %q: %w", arg, err)
			}

			tbl.Append([]string{
				fmt.Sprintf("0x%x", addr),
				fmt.Sprintf("0x%x", params.TagOf(addr)),
				fmt.Sprint(params.SetIndexOf(addr)),
				fmt.Sprint(params.OffsetOf(addr)),
			})
		}

		tbl.Render()

		return nil
	},
}

func init() {
	rootCmd.AddCommand(geometryCmd)
}
