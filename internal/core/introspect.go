package core

import (
	"cmp"
	"slices"
)

// FileInfo describes a live File.
type FileInfo struct {
	ID     uint64
	Type   FileType
	Flags  FileFlags
	Offset int64
	Refs   int64
	Cred   Cred
}

// DescriptorInfo describes one descriptor of one process.
//
// A descriptor caught mid-close has Closing set and no file fields.
type DescriptorInfo struct {
	PID         int
	FD          int
	FileID      uint64
	Type        FileType
	Flags       FileFlags
	Offset      int64
	FileRefs    int64
	HandleRefs  uint32
	Closing     bool
	CloseOnExec bool
	CloseOnFork bool
}

func fileInfo(f *File) FileInfo {
	return FileInfo{
		ID:     f.id,
		Type:   f.typ,
		Flags:  f.Flags(),
		Offset: f.Offset(),
		Refs:   f.Refs(),
		Cred:   f.cred,
	}
}

func sortByPID(ps []*Process) {
	slices.SortFunc(ps, func(a, b *Process) int { return cmp.Compare(a.pid, b.pid) })
}

// Descriptors lists the open descriptors of p in ascending order.
func (p *Process) Descriptors() []DescriptorInfo {
	return p.Table().descriptors(p.pid)
}

func (t *Table) descriptors(pid int) []DescriptorInfo {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := t.dt.Load()
	var out []DescriptorInfo
	for fd := 0; fd <= t.lastfile; fd++ {
		s := d.slots[fd].Load()
		if s == nil || !s.allocated.Load() {
			continue
		}
		refs := s.refs.Load()
		info := DescriptorInfo{
			PID:         pid,
			FD:          fd,
			HandleRefs:  refs & refMask,
			Closing:     refs&closingBit != 0,
			CloseOnExec: s.exclose.Load(),
			CloseOnFork: s.foclose.Load(),
		}
		f := s.file.Load()
		if f == nil && !info.Closing {
			// half open
			continue
		}
		if f != nil {
			info.FileID = f.id
			info.Type = f.typ
			info.Flags = f.Flags()
			info.Offset = f.Offset()
			info.FileRefs = f.Refs()
		}
		out = append(out, info)
	}
	return out
}

// Descriptors lists the descriptors of the process with the given pid, or
// of every process when pid is negative. Each table is locked only while it
// is walked.
func (s *System) Descriptors(pid int) []DescriptorInfo {
	if pid >= 0 {
		p, ok := s.Process(pid)
		if !ok {
			return nil
		}
		return p.Descriptors()
	}

	var out []DescriptorInfo
	for _, p := range s.processes() {
		out = append(out, p.Descriptors()...)
	}
	return out
}

// OpenFiles lists every File reachable from some descriptor, once each,
// ordered by ID.
func (s *System) OpenFiles() []FileInfo {
	seen := make(map[uint64]struct{})
	var out []FileInfo
	for _, p := range s.processes() {
		t := p.Table()
		t.mu.Lock()
		d := t.dt.Load()
		for fd := 0; fd <= t.lastfile; fd++ {
			sl := d.slots[fd].Load()
			if sl == nil {
				continue
			}
			f := sl.file.Load()
			if f == nil {
				continue
			}
			if _, dup := seen[f.id]; dup {
				continue
			}
			seen[f.id] = struct{}{}
			out = append(out, fileInfo(f))
		}
		t.mu.Unlock()
	}
	slices.SortFunc(out, func(a, b FileInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Files lists every live registered File, including files allocated but not
// yet affixed, ordered by ID.
func (s *System) Files() []FileInfo {
	s.fileMu.Lock()
	out := make([]FileInfo, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, fileInfo(f))
	}
	s.fileMu.Unlock()

	slices.SortFunc(out, func(a, b FileInfo) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
