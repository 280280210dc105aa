package cmd

import (
	"errors"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memscope/pod"
)

func init() {
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [NAME...]",
	Short: "Resolve the signature catalog from the config file",
	Long: `Scan for every signature in the config file (or only the named ones), apply
its offset and follow its resolve idiom: "lea_ret" reads the target of a
"lea rax,[rip+d]; ret" stub, "mov_indirect" the slot of a "mov r9,[rip+d]".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		sigs, err := s.cfg.compiledSignatures(args...)
		if err != nil {
			return err
		}
		if len(sigs) == 0 {
			return errors.New("no signatures configured")
		}

		resolved, resolveErr := s.engine.ResolveSignatures(sigs)

		t := pod.NewTable(
			pod.ColumnSpec{Header: "NAME", FormatFunc: colored(coloransi.ColorLimeGreen)},
			pod.ColumnSpec{Header: "MODULE"},
			pod.ColumnSpec{Header: "RESOLVE", BlankValue: "none"},
			pod.ColumnSpec{Header: "ADDRESS", AlignRight: true, FormatFunc: colored(coloransi.Cyan)},
			pod.ColumnSpec{Header: "RVA", AlignRight: true},
		)
		for _, c := range sigs {
			addr, ok := resolved[c.Name]
			if !ok {
				t.AddRow(c.Name, c.Module, string(c.Resolve))
				continue
			}
			rva := ""
			if m, err := s.engine.Module(c.Module); err == nil {
				rva = hex(uint64(addr - m.Base()))
			}
			t.AddRow(c.Name, c.Module, string(c.Resolve), addr.ToString(), rva)
		}
		if err := t.Render(cmd.OutOrStdout()); err != nil {
			return err
		}
		return resolveErr
	},
}
