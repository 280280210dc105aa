package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memscope/hexdump"
	"memscope/process"
	"memscope/search"
)

func init() {
	rootCmd.AddCommand(probeCmd)
	f := probeCmd.Flags()
	f.String("string", "", "search for an inline NUL-terminated string")
	f.Int64("int32", 0, "search for a 32-bit integer")
	f.Uint64("pointer", 0, "search for a pointer value")
	f.Uint("size", 256, "bytes to examine in each structure")
	f.Int("depth", 2, "pointers to follow from ADDRESS")
	f.Uint("align", 4, "step between examined offsets")
	f.Int("max", 64, "stop after this many results")
	f.Int("dump", 0, "hex dump this many bytes at ADDRESS first")
}

var probeCmd = &cobra.Command{
	Use:   "probe ADDRESS",
	Short: "Search the structures around an address for a known value",
	Long: `Walk the structure at ADDRESS, following pointers up to --depth, and print every
offset path that leads to the value. Use it to find the layout offsets of the
host's schema records after an update moves them: probe the schema system for
a module name you know, or a class record for its field count.`,
	Example: heredoc.Doc(`
		# Find where an object keeps a pointer to its module name
		❯ memscope probe 0x7FFB1C2D0000 --string client.dll --depth 3
		# Find a known health value inside a large object
		❯ memscope probe 0x1D0A3B40 --int32 1337 --size 0x400`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		str, _ := f.GetString("string")
		size, _ := f.GetUint("size")
		depth, _ := f.GetInt("depth")
		align, _ := f.GetUint("align")
		maxResults, _ := f.GetInt("max")
		dump, _ := f.GetInt("dump")

		base, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		var value readBack
		opts := []search.Option{
			search.WithMaxStructSize(size),
			search.WithMaxDepth(depth),
			search.WithMinAlignment(align),
			search.WithMaxResults(maxResults),
		}
		switch {
		case str != "":
			opts = append(opts, search.WithString(str))
			value = readString(process.ProcessMemorySize(len(str) + 1))
		case f.Changed("int32"):
			v, _ := f.GetInt64("int32")
			opts = append(opts, search.WithValue(int32(v)))
			value = readPath(func(v int32) string { return strconv.FormatInt(int64(v), 10) })
		case f.Changed("pointer"):
			v, _ := f.GetUint64("pointer")
			opts = append(opts, search.WithValue(process.ProcessMemoryAddress(v)))
			value = readPath(process.ProcessMemoryAddress.ToString)
		default:
			return errors.New("one of --string, --int32 or --pointer is required")
		}

		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		if dump > 0 {
			data, err := s.target.ReadMemory(base, process.ProcessMemorySize(dump))
			if err != nil {
				return err
			}
			o := hexdumpOptions()
			o.StartAddress = uint64(base)
			o.ShowPointers = true
			if mapper, ok := s.target.(memoryMapper); ok {
				o.MemoryMap, _ = mapper.GetMemoryMap()
			}
			fmt.Fprint(cmd.OutOrStdout(), hexdump.Dump(data, o))
		}

		results, err := search.Search(s.target, base, opts...)
		if err != nil {
			return err
		}
		for _, r := range results {
			v, err := value(s.target, base, r.Path)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (unreadable: %v)\n", r, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", r, v)
		}
		log.Infoln(len(results), "paths from", base.ToString())
		return nil
	},
}

// readBack reads the value at the end of a result path again, through the
// same pointers the search followed.
type readBack func(r process.MemoryReader, base process.ProcessMemoryAddress, path []process.ProcessMemorySize) (string, error)

func readPath[T any](format func(T) string) readBack {
	return func(r process.MemoryReader, base process.ProcessMemoryAddress, path []process.ProcessMemorySize) (string, error) {
		v, err := process.ReadPath[T](r, base, path...)
		if err != nil {
			return "", err
		}
		return format(v), nil
	}
}

// readString reads an inline string: the path up to its last step leads to
// the structure holding it.
func readString(limit process.ProcessMemorySize) readBack {
	return func(r process.MemoryReader, base process.ProcessMemoryAddress, path []process.ProcessMemorySize) (string, error) {
		if len(path) == 0 {
			return "", errors.New("empty path")
		}
		holder := base
		if len(path) > 1 {
			var err error
			if holder, err = process.ReadPath[process.ProcessMemoryAddress](r, base, path[:len(path)-1]...); err != nil {
				return "", err
			}
		}
		str, err := process.ReadNTS(r, holder+process.ProcessMemoryAddress(path[len(path)-1]), limit)
		if err != nil {
			return "", err
		}
		return strconv.Quote(str), nil
	}
}
