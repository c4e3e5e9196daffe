package schedule

import "fmt"

// ResourceID names a shared resource: a component store, a singleton,
// or a handle to an external subsystem. The scheduler never looks inside.
type ResourceID string

// SystemID indexes a system within one descriptor set.
type SystemID int

// AccessMode is the declared intent of an access.
type AccessMode uint8

const (
	Read AccessMode = iota
	Write
)

func (m AccessMode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("AccessMode(%d)", uint8(m))
	}
}

// ParseAccessMode accepts "read"/"r" and "write"/"w".
func ParseAccessMode(s string) (AccessMode, error) {
	switch s {
	case "read", "r", "R", "Read":
		return Read, nil
	case "write", "w", "W", "Write":
		return Write, nil
	}
	return Read, fmt.Errorf("unknown access mode %q", s)
}

// Access is one (resource, mode) declaration.
type Access struct {
	Resource ResourceID
	Mode     AccessMode
}

func Reads(id ResourceID) Access  { return Access{Resource: id, Mode: Read} }
func Writes(id ResourceID) Access { return Access{Resource: id, Mode: Write} }

func (a Access) String() string {
	return a.Mode.String() + " " + string(a.Resource)
}

// Descriptor is a system as the scheduler sees it. ID must equal the
// descriptor's index in the slice handed to BuildTimelines / BuildGraph.
type Descriptor struct {
	ID       SystemID
	Name     string
	Accesses []Access
}

// Label is the name used in diagnostics.
func (d Descriptor) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("#%d", d.ID)
}

// normalized merges repeated accesses to the same resource into one entry,
// keeping the position of the first declaration. Write dominates Read so a
// system can never end up in two groups of one timeline.
func (d Descriptor) normalized() []Access {
	if len(d.Accesses) < 2 {
		return d.Accesses
	}
	out := make([]Access, 0, len(d.Accesses))
	pos := make(map[ResourceID]int, len(d.Accesses))
	for _, a := range d.Accesses {
		if i, ok := pos[a.Resource]; ok {
			if a.Mode == Write {
				out[i].Mode = Write
			}
			continue
		}
		pos[a.Resource] = len(out)
		out = append(out, a)
	}
	return out
}
