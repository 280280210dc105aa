package cmd

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memscope/pod"
)

func init() {
	rootCmd.AddCommand(modulesCmd)
}

var modulesCmd = &cobra.Command{
	Use:   "modules [MODULE]",
	Short: "List loaded modules, or the exports of one module",
	Example: heredoc.Doc(`
		❯ memscope modules --name cs2.exe
		# Exports of one module in a snapshot
		❯ memscope modules client.dll --from ./dump`),
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		if len(args) == 1 {
			m, err := s.engine.Module(args[0])
			if err != nil {
				return err
			}
			exports, err := m.Exports()
			if err != nil {
				return err
			}
			t := pod.NewTable(
				pod.ColumnSpec{Header: "EXPORT"},
				pod.ColumnSpec{Header: "ADDRESS", AlignRight: true, FormatFunc: colored(coloransi.Cyan)},
				pod.ColumnSpec{Header: "RVA", AlignRight: true},
			)
			for _, name := range sortedKeys(exports) {
				addr := exports[name]
				t.AddRow(name, addr.ToString(), hex(uint64(addr-m.Base())))
			}
			return t.Render(cmd.OutOrStdout())
		}

		mods, err := s.target.Modules()
		if err != nil {
			return err
		}
		t := pod.NewTable(
			pod.ColumnSpec{Header: "NAME", FormatFunc: colored(coloransi.ColorLimeGreen)},
			pod.ColumnSpec{Header: "BASE", AlignRight: true, FormatFunc: colored(coloransi.Cyan)},
			pod.ColumnSpec{Header: "SIZE", AlignRight: true},
			pod.ColumnSpec{Header: "PATH"},
		)
		for _, m := range mods {
			t.AddRow(m.Name, m.Base.ToString(), hex(uint64(m.Size)), m.Path)
		}
		return t.Render(cmd.OutOrStdout())
	},
}
