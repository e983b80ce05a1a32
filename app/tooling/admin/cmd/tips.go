package cmd

import (
	"github.com/spf13/cobra"
)

var tipsCmd = &cobra.Command{
	Use:   "tips",
	Short: "Print the active tips restored from the repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState()
		if err != nil {
			return err
		}
		defer st.Shutdown()

		tips, err := st.QueryTips()
		if err != nil {
			return err
		}

		if !altTips {
			return printJSON(tips)
		}

		all, err := st.QueryAltTips()
		if err != nil {
			return err
		}
		return printJSON(all)
	},
}

var altTips bool

func init() {
	rootCmd.AddCommand(tipsCmd)
	tipsCmd.Flags().BoolVarP(&altTips, "all", "a", false, "Print every altchain tip in fork resolution order.")
}
