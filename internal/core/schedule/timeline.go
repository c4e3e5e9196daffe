package schedule

// Group is a batch of systems allowed to touch one resource at the same
// time: any number of readers, or exactly one writer.
type Group []SystemID

// Timeline is the ordered sequence of groups for one resource.
type Timeline []Group

// Timelines maps every touched resource to its timeline.
type Timelines map[ResourceID]Timeline

// BuildTimelines walks systems in declaration order (and each system's
// accesses in declaration order) and splits every resource's accessors into
// read batches separated by write barriers.
//
// Invariants of the result: adjacent groups never share a member, and a
// group holding a writer holds nothing else.
func BuildTimelines(descs []Descriptor) Timelines {
	tl := make(Timelines)
	for _, d := range descs {
		for _, a := range d.normalized() {
			groups := tl[a.Resource]
			if len(groups) == 0 {
				groups = append(groups, Group{d.ID})
				if a.Mode == Write {
					// close the write off from whatever follows
					groups = append(groups, Group{})
				}
				tl[a.Resource] = groups
				continue
			}

			last := len(groups) - 1
			if a.Mode == Read {
				groups[last] = append(groups[last], d.ID)
				tl[a.Resource] = groups
				continue
			}

			if len(groups[last]) > 0 {
				groups = append(groups, Group{})
				last++
			}
			groups[last] = append(groups[last], d.ID)
			groups = append(groups, Group{})
			tl[a.Resource] = groups
		}
	}

	for id, groups := range tl {
		if n := len(groups); n > 0 && len(groups[n-1]) == 0 {
			tl[id] = groups[:n-1]
		}
	}
	return tl
}

// Resources returns the timeline keys in sorted order.
func (t Timelines) Resources() []ResourceID {
	ids := make([]ResourceID, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sortResources(ids)
	return ids
}
