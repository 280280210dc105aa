package cmd

import (
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memscope/sdkgen"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().String("package", "sdk", "package clause of the generated file")
	dumpCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
	dumpCmd.Flags().Bool("enums", true, "generate the scope's enums")
}

var dumpCmd = &cobra.Command{
	Use:   "dump MODULE [CLASS...]",
	Short: "Generate Go structs with schema tags for a module's classes",
	Example: heredoc.Doc(`
		# Every class and enum of client.dll as package cs2
		❯ memscope dump client.dll --package cs2 -o client_gen.go
		# Two classes only, with the fields of their ancestors
		❯ memscope dump client.dll C_CSPlayerPawn CCSPlayerController`),
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		pkg, _ := cmd.Flags().GetString("package")
		output, _ := cmd.Flags().GetString("output")
		enums, _ := cmd.Flags().GetBool("enums")

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

		opts := []sdkgen.Option{sdkgen.WithPackage(pkg), sdkgen.WithClasses(args[1:]...)}
		if !enums {
			opts = append(opts, sdkgen.WithoutEnums())
		}
		f, err := sdkgen.Generate(scope, opts...)
		if f == nil {
			return err
		}
		if err != nil {
			// unreadable classes are left out of the file
			log.Warn(err.Error())
		}

		if output == "" {
			_, err = f.WriteTo(cmd.OutOrStdout())
			return err
		}
		out, err := os.Create(output)
		if err != nil {
			return err
		}
		if _, err := f.WriteTo(out); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		log.Infoln("wrote", len(f.Structs), "structs and", len(f.Enums), "enums to", output)
		return nil
	},
}

