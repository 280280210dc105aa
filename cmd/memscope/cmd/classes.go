package cmd

import (
	"fmt"
	"strconv"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memscope/pod"
	"memscope/schema"
)

func init() {
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(enumsCmd)
	classesCmd.Flags().BoolP("inherited", "i", false, "include fields declared by ancestors")
}

var classesCmd = &cobra.Command{
	Use:   "classes MODULE [CLASS]",
	Short: "List the schema classes of a module, or the fields of one class",
	Example: heredoc.Doc(`
		# List every class client.dll declares
		❯ memscope classes client.dll
		# Show one class with the fields of its ancestors
		❯ memscope classes client.dll C_BaseEntity --inherited`),
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		inherited, _ := cmd.Flags().GetBool("inherited")

		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		sys, err := s.engine.Schema()
		if err != nil {
			return err
		}
		scope, err := sys.FindTypeScope(args[0])
		if err != nil {
			return err
		}

		if len(args) == 2 {
			class, err := scope.FindDeclaredClass(args[1])
			if err != nil {
				return err
			}
			return renderClass(cmd, class, inherited)
		}

		classes, err := scope.Classes()
		if err != nil {
			return err
		}
		t := pod.NewTable(
			pod.ColumnSpec{Header: "CLASS", FormatFunc: colored(coloransi.ColorLimeGreen)},
			pod.ColumnSpec{Header: "SIZE", AlignRight: true},
			pod.ColumnSpec{Header: "FIELDS", AlignRight: true},
			pod.ColumnSpec{Header: "PARENT"},
		)
		for _, c := range classes {
			parent := ""
			if p, ok, err := c.Parent(); err == nil && ok {
				parent = p.Name
			}
			t.AddRow(c.Name, hex(c.Size), strconv.Itoa(len(c.Fields)), parent)
		}
		return t.Render(cmd.OutOrStdout())
	},
}

func renderClass(cmd *cobra.Command, c *schema.Class, inherited bool) error {
	fields := c.Fields
	if inherited {
		var err error
		if fields, err = c.InheritedFields(); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), c.String())
	t := pod.NewTable(
		pod.ColumnSpec{Header: "OFFSET", AlignRight: true, FormatFunc: colored(coloransi.Cyan)},
		pod.ColumnSpec{Header: "FIELD", FormatFunc: colored(coloransi.ColorLimeGreen)},
		pod.ColumnSpec{Header: "TYPE", BlankValue: "?"},
		pod.ColumnSpec{Header: "DECLARED BY"},
	)
	for _, f := range fields {
		t.AddRow(hex(f.Offset), f.Name, f.Type, f.Class)
	}
	return t.Render(cmd.OutOrStdout())
}

var enumsCmd = &cobra.Command{
	Use:           "enums MODULE [ENUM]",
	Short:         "List the schema enums of a module, or the variants of one enum",
	Args:          cobra.RangeArgs(1, 2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		sys, err := s.engine.Schema()
		if err != nil {
			return err
		}
		scope, err := sys.FindTypeScope(args[0])
		if err != nil {
			return err
		}

		if len(args) == 2 {
			e, err := scope.FindEnum(args[1])
			if err != nil {
				return err
			}
			t := pod.NewTable(
				pod.ColumnSpec{Header: "VARIANT", FormatFunc: colored(coloransi.ColorLimeGreen)},
				pod.ColumnSpec{Header: "VALUE", AlignRight: true},
			)
			for _, v := range e.Variants {
				t.AddRow(v.Name, strconv.FormatInt(v.Value, 10))
			}
			return t.Render(cmd.OutOrStdout())
		}

		enums, err := scope.Enums()
		if err != nil {
			return err
		}
		t := pod.NewTable(
			pod.ColumnSpec{Header: "ENUM", FormatFunc: colored(coloransi.ColorLimeGreen)},
			pod.ColumnSpec{Header: "VARIANTS", AlignRight: true},
		)
		for _, e := range enums {
			t.AddRow(e.Name, strconv.Itoa(len(e.Variants)))
		}
		return t.Render(cmd.OutOrStdout())
	},
}
