package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"memscope/engine"
	"memscope/process"
	"memscope/process_blob"
)

var errNoTarget = errors.New("one of --pid, --name or --from is required")

// openTarget opens the snapshot or live process named on the command line.
// The returned func releases it.
func openTarget(v *viper.Viper) (process.Target, func(), error) {
	from, pid, name := v.GetString("from"), v.GetInt("pid"), v.GetString("name")
	verbose := v.GetBool("verbose")

	switch {
	case from != "":
		snap, err := process_blob.LoadSnapshot(from)
		if err != nil {
			return nil, nil, fmt.Errorf("load snapshot %s: %w", from, err)
		}
		if verbose {
			log.Infoln("snapshot", from, "pid", snap.PID, snap.Name, len(snap.MemoryMap), "regions")
		}
		return snap, func() {}, nil
	case pid != 0:
		p, err := openProcess(process.ProcessID(pid))
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	case name != "":
		found, err := findProcess(name)
		if err != nil {
			return nil, nil, err
		}
		if verbose {
			log.Infoln("found", name, "pid", found)
		}
		p, err := openProcess(found)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { p.Close() }, nil
	}
	return nil, nil, errNoTarget
}

// session is one opened target with its engine and configuration.
type session struct {
	cfg    Config
	target process.Target
	engine *engine.Engine
	close  func()
}

func openSession(v *viper.Viper) (*session, error) {
	cfg, err := loadConfig(v)
	if err != nil {
		return nil, err
	}
	target, closeFn, err := openTarget(v)
	if err != nil {
		return nil, err
	}
	return &session{
		cfg:    cfg,
		target: target,
		engine: engine.New(target, cfg.engineOptions()...),
		close:  closeFn,
	}, nil
}
