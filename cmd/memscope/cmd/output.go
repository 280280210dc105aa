package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/spf13/viper"

	"memscope/hexdump"
	"memscope/pod"
	"memscope/process"
)

func colored(fg coloransi.ColorCode) pod.FormatFunc {
	if viper.GetBool("no-color") {
		return nil
	}
	return pod.Colored(fg)
}

func hexdumpOptions() hexdump.Options {
	o := hexdump.DefaultOptions()
	o.Plain = viper.GetBool("no-color")
	return o
}

func hex[T ~int32 | ~int64 | ~uint64 | ~uint](v T) string {
	if v < 0 {
		return fmt.Sprintf("-0x%X", -int64(v))
	}
	return fmt.Sprintf("0x%X", uint64(v))
}

// parseAddress accepts 0x-prefixed hex or decimal.
func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return process.ProcessMemoryAddress(v), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
