package dsm

import (
	"fmt"
	"sort"
	"time"
)

func NewDsmManager(dsmStore *DsmStore) *DsmManager {
	return &DsmManager{
		dsmStore: dsmStore,
	}
}

type DsmManager struct {
	dsmStore *DsmStore
}

func (m *DsmManager) RecordState(name, state, reason, runId string, port int, domain string) error {
	return m.dsmStore.withLock(func(st *DeployState) error {
		st.Projects[name] = ProjectMark{
			Name:      name,
			State:     state,
			Reason:    reason,
			RunId:     runId,
			Port:      port,
			Domain:    domain,
			UpdatedAt: time.Now(),
		}
		st.LastRunId = runId
		st.UpdatedAt = time.Now()
		return nil
	})
}

func (m *DsmManager) GetProject(name string) (ProjectMark, error) {
	var mark ProjectMark
	err := m.dsmStore.withRead(func(st *DeployState) error {
		p, ok := st.Projects[name]
		if !ok {
			return fmt.Errorf("project=%s not found", name)
		}
		mark = p
		return nil
	})
	return mark, err
}

func (m *DsmManager) GetProjectList() ([]ProjectMark, error) {
	var list []ProjectMark
	err := m.dsmStore.withRead(func(st *DeployState) error {
		for _, p := range st.Projects {
			list = append(list, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list, nil
}

func (m *DsmManager) GetLastRunId() (string, error) {
	var runId string
	err := m.dsmStore.withRead(func(st *DeployState) error {
		runId = st.LastRunId
		return nil
	})
	return runId, err
}
