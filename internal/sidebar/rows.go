package sidebar

// RowKind distinguishes the lines of the flattened tree.
type RowKind int

const (
	RowModule RowKind = iota
	RowChapter
	RowSegment
)

// Row is one visible line of the tree, for cursor navigation.
type Row struct {
	Kind       RowKind
	Depth      int
	Module     int
	ChapterKey string
	Segment    int
	Label      string
	Expanded   bool
	// Highlight marks the current module, chapter or segment.
	Highlight bool
	Completed bool
	Locked    bool
}

// Rows flattens the visible part of the tree. Collapsed branches are
// skipped.
func (t Tree) Rows() []Row {
	var rows []Row
	for _, m := range t.Modules {
		rows = append(rows, Row{
			Kind:      RowModule,
			Module:    m.Number,
			Label:     m.Name,
			Expanded:  m.Expanded,
			Highlight: m.CurrentModule,
			Completed: m.AllCompleted,
		})
		if !m.Expanded {
			continue
		}
		for _, c := range m.Chapters {
			rows = append(rows, Row{
				Kind:       RowChapter,
				Depth:      1,
				Module:     m.Number,
				ChapterKey: c.Key,
				Label:      c.Name,
				Expanded:   c.Expanded,
				Highlight:  c.HasCurrent,
				Completed:  c.AllCompleted,
			})
			if !c.Expanded {
				continue
			}
			for _, s := range c.Segments {
				rows = append(rows, Row{
					Kind:       RowSegment,
					Depth:      2,
					Module:     m.Number,
					ChapterKey: c.Key,
					Segment:    s.Number,
					Label:      s.Name,
					Highlight:  s.State == Current,
					Completed:  s.State == Completed,
					Locked:     s.State == Locked,
				})
			}
		}
	}
	return rows
}

// Activate resolves a row to what it loads.
func (n *Navigator) Activate(t Tree, r Row, mostRecent func(module int) int) Target {
	switch r.Kind {
	case RowModule:
		return n.ActivateModule(r.Module, mostRecent)
	case RowChapter:
		return n.ActivateChapter(r.ChapterKey)
	default:
		return t.ActivateSegment(r.ChapterKey, r.Segment)
	}
}
