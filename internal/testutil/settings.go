package testutil

import (
	"maps"
	"slices"
)

// MemorySettings is an in-memory grouped key-value store for tests.
// Keys are returned in sorted order.
type MemorySettings struct {
	Groups map[string]map[string]string
}

// NewMemorySettings returns an empty MemorySettings.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{Groups: map[string]map[string]string{}}
}

func (m *MemorySettings) Keys(group string) []string {
	return slices.Sorted(maps.Keys(m.Groups[group]))
}

func (m *MemorySettings) Value(group, key string) (string, bool) {
	v, ok := m.Groups[group][key]
	return v, ok
}

func (m *MemorySettings) SetValue(group, key, value string) {
	if m.Groups[group] == nil {
		m.Groups[group] = map[string]string{}
	}
	m.Groups[group][key] = value
}

func (m *MemorySettings) ClearGroup(group string) {
	delete(m.Groups, group)
}
