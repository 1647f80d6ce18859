package batch

import (
	"strings"

	"idmerge/internal/match"
)

// RawInput is one uploaded item: the path the caller declared for it plus
// its bytes.
type RawInput struct {
	Path string
	Data []byte
}

// DeclaredUnit is an explicitly declared unit: a name and the file names
// expected to belong to it.
type DeclaredUnit struct {
	Name      string   `json:"unit_name"`
	FileNames []string `json:"file_names"`
}

// Unit is one logical document owner's set of candidate images, owned
// exclusively for the duration of one batch run.
type Unit struct {
	Name     string
	Images   []match.Image
	Declared bool
	// TempDir, when set, is a spool directory owned by this unit; it is
	// removed when the unit's outcome is finalized.
	TempDir string
}

// Group assigns raw inputs to logical units. With a declared structure,
// names are matched case-insensitively and each input is claimed at most
// once; a declared unit whose files match nothing still yields a
// (zero-image) unit so it fails visibly instead of vanishing. Without a
// structure, each input's path is split on its first separator and the
// leading segment names the unit.
func Group(declared []DeclaredUnit, inputs []RawInput) []Unit {
	if len(declared) > 0 {
		return groupDeclared(declared, inputs)
	}
	return groupByPath(inputs)
}

func groupDeclared(declared []DeclaredUnit, inputs []RawInput) []Unit {
	used := make([]bool, len(inputs))
	units := make([]Unit, 0, len(declared))
	for _, d := range declared {
		u := Unit{Name: d.Name, Declared: true}
		for _, want := range d.FileNames {
			for i, in := range inputs {
				if used[i] {
					continue
				}
				if strings.EqualFold(baseName(in.Path), want) || strings.EqualFold(in.Path, want) {
					u.Images = append(u.Images, match.Image{Ref: in.Path, Data: in.Data})
					used[i] = true
					break
				}
			}
		}
		units = append(units, u)
	}
	return units
}

func groupByPath(inputs []RawInput) []Unit {
	index := make(map[string]int)
	var units []Unit
	for _, in := range inputs {
		name := in.Path
		if i := strings.IndexAny(in.Path, `/\`); i >= 0 {
			name = in.Path[:i]
		}
		idx, ok := index[name]
		if !ok {
			idx = len(units)
			index[name] = idx
			units = append(units, Unit{Name: name})
		}
		units[idx].Images = append(units[idx].Images, match.Image{Ref: in.Path, Data: in.Data})
	}
	return units
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
