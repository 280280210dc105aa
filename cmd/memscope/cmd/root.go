// Package cmd implements the memscope command line.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "memscope"))
)

var rootCmd = &cobra.Command{
	Use:   "memscope",
	Short: "Locate and read typed data inside a running host's memory",
	Long: `memscope finds code and data in a host process (or a captured snapshot of one)
by byte signature, follows the lea/mov idioms the signatures point at, walks the
host's named-interface registries and its runtime type schema, and turns schema
field names into offsets.`,
}

// Execute is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Warn(err.Error())
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./memscope.yaml or $HOME/.config/memscope/memscope.yaml)")
	pf.Int("pid", 0, "attach to the process with this PID")
	pf.String("name", "", "attach to the lowest PID with this process name")
	pf.String("from", "", "read from a snapshot directory instead of a live process")
	pf.Uint("maxdop", 0, "regions scanned in parallel (default: number of CPUs)")
	pf.BoolP("verbose", "V", false, "verbose output")
	pf.Bool("no-color", false, "disable colorized output")

	for _, name := range []string{"pid", "name", "from", "maxdop", "verbose", "no-color"} {
		viper.BindPFlag(name, pf.Lookup(name))
	}
	viper.BindEnv("no-color", "NO_COLOR")

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "memscope"))
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName("memscope")
	}

	viper.SetEnvPrefix("memscope")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && viper.GetBool("verbose") {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
