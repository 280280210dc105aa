package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(offsetCmd)
	offsetCmd.Flags().BoolP("inherited", "i", false, "also search the class's ancestors")
}

var offsetCmd = &cobra.Command{
	Use:   "offset MODULE CLASS FIELD",
	Short: "Print the byte offset of a schema field",
	Long: `Print the byte offset of FIELD within CLASS as declared in MODULE's type scope.
Only the class's own fields are considered unless --inherited is given.`,
	Example:       `  memscope offset client.dll C_BaseEntity m_iHealth --name cs2.exe`,
	Args:          cobra.ExactArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		inherited, _ := cmd.Flags().GetBool("inherited")

		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		if !inherited {
			off, err := s.engine.Offset(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex(off))
			return nil
		}

		sys, err := s.engine.Schema()
		if err != nil {
			return err
		}
		class, err := sys.FindDeclaredClass(args[0], args[1])
		if err != nil {
			return err
		}
		f, err := class.FindInheritedField(args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (declared by %s)\n", hex(f.Offset), f.Class)
		return nil
	},
}
