package manager

import (
	"sort"
	"time"

	"codebuddy/pkg/types"
)

// Ready reports whether a model is resident.
func (m *Manager) Ready() bool {
	_, ok := m.Resident()
	return ok
}

// Status returns a snapshot of every tracked instance and the host profile.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := types.StatusResponse{
		Instances:       make([]types.InstanceStatus, 0, len(m.instances)),
		PerformanceMode: string(m.mode),
		Host:            m.caps.Host(),
		LastError:       m.lastErr,
		UptimeSeconds:   int64(time.Since(m.startTime).Seconds()),
		ServerTimeUnix:  time.Now().Unix(),
		LoadsTotal:      m.counts.loads,
		EvictionsTotal:  m.counts.evictions,
		UnloadsTotal:    m.counts.unloads,
		FallbacksTotal:  m.counts.fallbacks,
	}
	for _, inst := range m.instances {
		st := types.InstanceStatus{
			Language:      inst.Language,
			ModelID:       inst.ModelID,
			State:         string(inst.State),
			QueueLen:      len(inst.queueCh),
			Inflight:      len(inst.genCh),
			MaxQueueDepth: m.maxQueueDepth,
		}
		if fam, ok := m.formatter.Family(inst.Language); ok {
			st.PromptFamily = fam.String()
		}
		if inst.State == StateResident || inst.State == StateDraining {
			st.Rung = inst.Spec.Rung
			st.Precision = string(inst.Spec.Precision)
			st.LoadedAt = inst.LoadedAt.Unix()
			st.LastUsed = inst.LastUsed.Unix()
		}
		out.Instances = append(out.Instances, st)
	}
	sort.Slice(out.Instances, func(i, j int) bool { return out.Instances[i].Language < out.Instances[j].Language })
	return out
}
