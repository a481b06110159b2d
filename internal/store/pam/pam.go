package pam

import (
	"fmt"
	"maps"
	"sort"
	"time"
)

func NewPamManager(pamStore *PamStore) *PamManager {
	return &PamManager{
		pamStore: pamStore,
	}
}

type PamManager struct {
	pamStore *PamStore
}

// EnsureAssignments resolves a port for every named project and persists
// the result. Fixed ports always win, remembered assignments survive as
// long as they are free and in range, and everything else is assigned
// alphabetically scanning up from the base port. Ports remembered for
// projects not in the current set stay reserved so a project that
// temporarily disappears gets its old port back.
func (m *PamManager) EnsureAssignments(names []string, fixed map[string]int, start, end int) (map[string]int, error) {
	var assigned map[string]int
	err := m.pamStore.withLock(func(st *PortMap) error {
		result, err := computeAssignments(st, names, fixed, start, end)
		if err != nil {
			return err
		}
		assigned = result

		merged := make(map[string]int, len(st.Ports)+len(result))
		maps.Copy(merged, st.Ports)
		maps.Copy(merged, result)
		if !maps.Equal(merged, st.Ports) {
			st.Ports = merged
			st.UpdatedAt = time.Now()
		}
		return nil
	})
	return assigned, err
}

// PreviewAssignments computes the same result as EnsureAssignments
// without writing anything. Used by dry runs.
func (m *PamManager) PreviewAssignments(names []string, fixed map[string]int, start, end int) (map[string]int, error) {
	var assigned map[string]int
	err := m.pamStore.withRead(func(st *PortMap) error {
		result, err := computeAssignments(st, names, fixed, start, end)
		if err != nil {
			return err
		}
		assigned = result
		return nil
	})
	return assigned, err
}

func computeAssignments(st *PortMap, names []string, fixed map[string]int, start, end int) (map[string]int, error) {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	nameSet := make(map[string]bool, len(sorted))
	for _, name := range sorted {
		nameSet[name] = true
	}

	assigned := make(map[string]int, len(sorted))
	used := make(map[int]bool)

	// fixed values are reserved even when the project is absent
	for _, p := range fixed {
		used[p] = true
	}

	// ports remembered for absent projects stay reserved
	for storedName, p := range st.Ports {
		if !nameSet[storedName] {
			used[p] = true
		}
	}

	// pinned projects first
	for _, name := range sorted {
		if p, ok := fixed[name]; ok {
			assigned[name] = p
		}
	}

	// remembered assignments survive when still free and in range
	for _, name := range sorted {
		if _, done := assigned[name]; done {
			continue
		}
		if p, ok := st.Ports[name]; ok && p >= start && p <= end && !used[p] {
			assigned[name] = p
			used[p] = true
		}
	}

	// the rest scan up from the base port
	cur := start
	for _, name := range sorted {
		if _, done := assigned[name]; done {
			continue
		}
		for cur <= end && used[cur] {
			cur++
		}
		if cur > end {
			return nil, fmt.Errorf("no available ports in range %d-%d", start, end)
		}
		assigned[name] = cur
		used[cur] = true
		cur++
	}

	return assigned, nil
}

func (m *PamManager) GetPort(name string) (int, error) {
	var port int
	err := m.pamStore.withRead(func(st *PortMap) error {
		p, ok := st.Ports[name]
		if !ok {
			return fmt.Errorf("project=%s has no assigned port", name)
		}
		port = p
		return nil
	})
	return port, err
}

func (m *PamManager) GetPortList() (map[string]int, error) {
	ports := map[string]int{}
	err := m.pamStore.withRead(func(st *PortMap) error {
		maps.Copy(ports, st.Ports)
		return nil
	})
	return ports, err
}

func (m *PamManager) ReleasePort(name string) error {
	return m.pamStore.withLock(func(st *PortMap) error {
		if _, ok := st.Ports[name]; !ok {
			return fmt.Errorf("project=%s not found", name)
		}
		delete(st.Ports, name)
		st.UpdatedAt = time.Now()
		return nil
	})
}
