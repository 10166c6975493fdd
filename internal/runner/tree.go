package runner

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// descendants returns every live descendant of pid, depth first. The recorder
// is started through the package manager, which forks the actual node process,
// so signalling only the root would leave the capture running.
func descendants(pid int) []*gopsproc.Process {
	root, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []*gopsproc.Process
	var walk func(p *gopsproc.Process)
	walk = func(p *gopsproc.Process) {
		children, err := p.Children()
		if err != nil {
			return
		}
		for _, c := range children {
			out = append(out, c)
			walk(c)
		}
	}
	walk(root)
	return out
}

// killAll kills processes that outlived their parent, best effort.
func killAll(ps []*gopsproc.Process) {
	for _, p := range ps {
		if ok, err := p.IsRunning(); err == nil && ok {
			_ = p.Kill()
		}
	}
}
