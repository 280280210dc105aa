package cmd

import (
	"errors"
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memscope/interfaces"
	"memscope/module"
	"memscope/pod"
)

func init() {
	rootCmd.AddCommand(interfacesCmd)
	interfacesCmd.Flags().BoolP("create", "c", false, "call each factory's lea/ret stub and show the object address")
}

var interfacesCmd = &cobra.Command{
	Use:   "interfaces [MODULE [NAME]]",
	Short: "List the named interfaces of every module or of one module, or resolve one",
	Example: heredoc.Doc(`
		# List the registries of every loaded module
		❯ memscope interfaces --name cs2.exe
		# List the registry of client.dll
		❯ memscope interfaces client.dll --create
		# Resolve the first interface whose name contains Source2Client
		❯ memscope interfaces client.dll Source2Client`),
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		create, _ := cmd.Flags().GetBool("create")

		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		if len(args) == 2 {
			obj, err := s.engine.Interface(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), obj.ToString())
			return nil
		}

		var registries []*interfaces.Registry
		if len(args) == 1 {
			reg, err := s.engine.Registry(args[0])
			if err != nil {
				return err
			}
			registries = append(registries, reg)
		} else {
			mods, err := s.target.Modules()
			if err != nil {
				return err
			}
			for _, m := range mods {
				reg, err := s.engine.Registry(m.Name)
				if errors.Is(err, module.ErrExportNotFound) {
					continue
				}
				if err != nil {
					log.Debugln("no registry in", m.Name, err)
					continue
				}
				registries = append(registries, reg)
			}
		}

		t := pod.NewTable(
			pod.ColumnSpec{Header: "MODULE"},
			pod.ColumnSpec{Header: "NAME", FormatFunc: colored(coloransi.ColorLimeGreen)},
			pod.ColumnSpec{Header: "FACTORY", AlignRight: true, FormatFunc: colored(coloransi.Cyan)},
			pod.ColumnSpec{Header: "OBJECT", AlignRight: true},
		)
		for _, reg := range registries {
			entries, err := reg.Entries()
			if err != nil {
				return err
			}
			for _, e := range entries {
				obj := ""
				if create {
					if addr, err := reg.Instantiate(e); err == nil {
						obj = addr.ToString()
					} else {
						log.Debugln(e.Name, err)
					}
				}
				t.AddRow(reg.Module(), e.Name, e.Factory.ToString(), obj)
			}
		}
		return t.Render(cmd.OutOrStdout())
	},
}
