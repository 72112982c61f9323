// Package hiera resolves the layered tempest settings for a selector set
// into an ordered list of (section, key, value) entries.
package hiera

// DefaultSection is the pseudo-section that always exists in the INI file.
const DefaultSection = "DEFAULT"

// Entry is one resolved setting.
type Entry struct {
	Section string
	Key     string
	Value   string
}

// Entries keeps resolved settings in first-seen order. Setting an existing
// (section, key) pair overwrites its value in place.
type Entries struct {
	sections []string
	seen     map[string]bool
	list     []Entry
	index    map[[2]string]int
}

// NewEntries returns an empty set of entries.
func NewEntries() *Entries {
	return &Entries{
		seen:  make(map[string]bool),
		index: make(map[[2]string]int),
	}
}

// AddSection records a section even if it ends up holding no keys.
func (e *Entries) AddSection(name string) {
	if !e.seen[name] {
		e.seen[name] = true
		e.sections = append(e.sections, name)
	}
}

// Set stores value under (section, key), last writer wins.
func (e *Entries) Set(section, key, value string) {
	e.AddSection(section)
	k := [2]string{section, key}
	if i, ok := e.index[k]; ok {
		e.list[i].Value = value
		return
	}
	e.index[k] = len(e.list)
	e.list = append(e.list, Entry{Section: section, Key: key, Value: value})
}

// Get returns the value stored under (section, key).
func (e *Entries) Get(section, key string) (string, bool) {
	i, ok := e.index[[2]string{section, key}]
	if !ok {
		return "", false
	}
	return e.list[i].Value, true
}

// Sections returns section names in first-seen order.
func (e *Entries) Sections() []string {
	out := make([]string, len(e.sections))
	copy(out, e.sections)
	return out
}

// All returns a copy of every entry in order.
func (e *Entries) All() []Entry {
	out := make([]Entry, len(e.list))
	copy(out, e.list)
	return out
}

// Len returns the number of entries.
func (e *Entries) Len() int {
	return len(e.list)
}

// Merge applies other on top of e.
func (e *Entries) Merge(other *Entries) {
	for _, s := range other.sections {
		e.AddSection(s)
	}
	for _, en := range other.list {
		e.Set(en.Section, en.Key, en.Value)
	}
}
