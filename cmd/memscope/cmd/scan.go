package cmd

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"memscope/hexdump"
	"memscope/pod"
	"memscope/process"
	"memscope/process/memory_map"
	"memscope/sig"
)

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("module", "m", "", "scan only this module's image")
	scanCmd.Flags().BoolP("all", "a", false, "report every match instead of the first")
	scanCmd.Flags().IntP("context", "c", 16, "bytes of hex dump context around each shown match (0 disables)")
	scanCmd.Flags().Int("show", 1, "number of matches to hex dump")
}

type memoryMapper interface {
	GetMemoryMap() ([]memory_map.MemoryMapItem, error)
}

var scanCmd = &cobra.Command{
	Use:   "scan PATTERN",
	Short: "Scan a module, or all readable memory, for a byte pattern",
	Long: `Scan for a byte pattern such as "48 8D 05 ? ? ? ? C3". Each token is a hex
byte or a wildcard ("?" or "??"). With --module the search is a single pass over the
module image; without it every readable region is scanned in parallel.`,
	Example: heredoc.Doc(`
		❯ memscope scan -m client.dll "48 8B 05 ?? ?? ?? ?? 48 8B 88"
		# Every match in all readable memory of a snapshot
		❯ memscope scan --all "4C 8B 0D ? ? ? ? 4C 8B D2" --from ./dump`),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		moduleName, _ := cmd.Flags().GetString("module")
		all, _ := cmd.Flags().GetBool("all")
		context, _ := cmd.Flags().GetInt("context")
		show, _ := cmd.Flags().GetInt("show")

		p, err := sig.Compile(args[0])
		if err != nil {
			return err
		}

		s, err := openSession(viper.GetViper())
		if err != nil {
			return err
		}
		defer s.close()

		var matches []sig.Match
		if moduleName != "" {
			m, err := s.engine.Module(moduleName)
			if err != nil {
				return err
			}
			if all {
				matches, err = m.ScanAll(p)
				if err == nil && len(matches) == 0 {
					err = &sig.PatternNotFoundError{Module: moduleName, Pattern: p}
				}
			} else {
				var match sig.Match
				match, err = m.Scan(p)
				matches = append(matches, match)
			}
			if err != nil {
				return err
			}
		} else {
			addrs, err := scanProcess(s, p, all)
			if err != nil {
				return err
			}
			if len(addrs) == 0 {
				return &sig.PatternNotFoundError{Module: "process memory", Pattern: p}
			}
			matches, err = attribute(s.target, addrs)
			if err != nil {
				return err
			}
		}

		t := pod.NewTable(
			pod.ColumnSpec{Header: "ADDRESS", AlignRight: true, FormatFunc: colored(coloransi.Cyan)},
			pod.ColumnSpec{Header: "MODULE"},
			pod.ColumnSpec{Header: "RVA", AlignRight: true},
		)
		mods, _ := s.target.Modules()
		for _, m := range matches {
			name, rva := "", ""
			for _, mod := range mods {
				if mod.Contains(m.Address) {
					name, rva = mod.Name, hex(m.RVA())
					break
				}
			}
			t.AddRow(m.Address.ToString(), name, rva)
		}
		if err := t.Render(cmd.OutOrStdout()); err != nil {
			return err
		}

		if context <= 0 {
			return nil
		}
		for i, m := range matches {
			if i >= show {
				break
			}
			dump, err := hexdump.Match(s.target, m, p, context, context, hexdumpOptions())
			if err != nil {
				log.Warn("no context for ", m.Address.ToString(), ": ", err)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout())
			fmt.Fprint(cmd.OutOrStdout(), dump)
		}
		return nil
	},
}

// scanProcess searches every readable region of the target, stopping at the
// lowest match unless all is set. Live processes use their own scanners;
// snapshots go through the region scanner.
func scanProcess(s *session, p sig.Pattern, all bool) ([]process.ProcessMemoryAddress, error) {
	maxdop := s.engine.MaxDOP()
	if proc, ok := s.target.(process.Process); ok {
		switch {
		case !all:
			addr, err := proc.ScanFirst(p.AOB())
			if err != nil {
				return nil, err
			}
			return []process.ProcessMemoryAddress{addr}, nil
		case maxdop <= 1:
			return proc.Scan(p.AOB())
		}
		return proc.ScanParallel(p.AOB(), maxdop)
	}

	mapper, ok := s.target.(memoryMapper)
	if !ok {
		return nil, fmt.Errorf("target has no memory map, use --module")
	}
	mm, err := mapper.GetMemoryMap()
	if err != nil {
		return nil, err
	}
	if !all {
		addr, err := sig.ScanRegionsFirst(s.target, mm, p, maxdop)
		if err != nil {
			return nil, err
		}
		return []process.ProcessMemoryAddress{addr}, nil
	}
	return sig.ScanRegions(s.target, mm, p, maxdop)
}

// attribute turns raw addresses into matches relative to their module, if any.
func attribute(t process.Target, addrs []process.ProcessMemoryAddress) ([]sig.Match, error) {
	mods, err := t.Modules()
	if err != nil {
		return nil, err
	}
	out := make([]sig.Match, 0, len(addrs))
	for _, a := range addrs {
		m := sig.Match{Address: a, ModuleBase: a}
		for _, mod := range mods {
			if mod.Contains(a) {
				m.ModuleBase = mod.Base
				break
			}
		}
		out = append(out, m)
	}
	return out, nil
}
