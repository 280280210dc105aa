package cmd

import (
	"errors"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memscope/pod"
)

func init() {
	rootCmd.AddCommand(bindingsCmd)
}

var bindingsCmd = &cobra.Command{
	Use:   "bindings",
	Short: "Resolve every field binding from the config file",
	Long: `Register the bindings listed in the config file and resolve each one
against the schema. Every binding that fails is reported; the command
fails if any does.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		table := s.engine.Table()
		if err := table.RegisterSpecs(s.cfg.Bindings); err != nil {
			return err
		}
		bindings := table.Bindings()
		if len(bindings) == 0 {
			return errors.New("no bindings configured")
		}

		t := pod.NewTable(
			pod.ColumnSpec{Header: "OWNER"},
			pod.ColumnSpec{Header: "NAME", FormatFunc: colored(coloransi.ColorLimeGreen)},
			pod.ColumnSpec{Header: "FIELD"},
			pod.ColumnSpec{Header: "KIND"},
			pod.ColumnSpec{Header: "OFFSET", AlignRight: true, FormatFunc: colored(coloransi.Cyan), BlankValue: "unresolved"},
		)
		var errs []error
		for _, b := range bindings {
			off, err := table.Offset(b)
			if err != nil {
				errs = append(errs, err)
				t.AddRow(b.Owner, b.Name, b.Key.Module+"!"+b.Key.Name(), b.Kind.String())
				continue
			}
			t.AddRow(b.Owner, b.Name, b.Key.Module+"!"+b.Key.Name(), b.Kind.String(), hex(off))
		}
		if err := t.Render(cmd.OutOrStdout()); err != nil {
			return err
		}
		return errors.Join(errs...)
	},
}
