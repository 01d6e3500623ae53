package filepool

import "github.com/prometheus/client_golang/prometheus"

// Metrics adapts a *FilePool's state into a Prometheus Collector. The
// pool's state is a snapshot, not a stream of events, so this is a custom
// pull-based Collector rather than counters bumped on every call.
//
// Every metric carries a constant "pool" label so the chunk pool and the
// WAL pool (the chunkserver bootstrap's two-pool setup) can be registered
// side by side under distinct series.
type Metrics struct {
	pool *FilePool

	chunkNum          *prometheus.Desc
	dirtyChunksLeft   *prometheus.Desc
	cleanChunksLeft   *prometheus.Desc
	preallocatedLeft  *prometheus.Desc
	preAllocateTarget *prometheus.Desc
	allocateChunkNum  *prometheus.Desc
	formatWrong       *prometheus.Desc
}

// NewMetrics creates a Collector for pool, labeled pool="name" (e.g.
// "chunk" or "wal").
func NewMetrics(pool *FilePool, name string) *Metrics {
	labels := prometheus.Labels{"pool": name}
	desc := func(metricName, help string) *prometheus.Desc {
		return prometheus.NewDesc("chunkfilepool_"+metricName, help, nil, labels)
	}
	return &Metrics{
		pool:              pool,
		chunkNum:          desc("chunk_num", "Total number of pool files accounted for, including those already claimed by the data store."),
		dirtyChunksLeft:   desc("dirty_chunks_left", "Number of dirty (unzeroed) files currently free in the pool."),
		cleanChunksLeft:   desc("clean_chunks_left", "Number of clean (zeroed) files currently free in the pool."),
		preallocatedLeft:  desc("preallocated_chunks_left", "Total files currently free in the pool (dirty + clean)."),
		preAllocateTarget: desc("format_preallocate_target", "Number of files the format worker pool was asked to produce on the current run."),
		allocateChunkNum:  desc("format_allocated_num", "Number of files the format worker pool has produced so far on the current run."),
		formatWrong:       desc("format_wrong", "1 if the format worker pool has observed a fatal allocation error, 0 otherwise."),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.chunkNum
	ch <- m.dirtyChunksLeft
	ch <- m.cleanChunksLeft
	ch <- m.preallocatedLeft
	ch <- m.preAllocateTarget
	ch <- m.allocateChunkNum
	ch <- m.formatWrong
}

// Collect implements prometheus.Collector, pulling a fresh snapshot from
// the pool on every scrape.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	state := m.pool.GetState()
	ch <- prometheus.MustNewConstMetric(m.chunkNum, prometheus.GaugeValue, float64(state.ChunkNum))
	ch <- prometheus.MustNewConstMetric(m.dirtyChunksLeft, prometheus.GaugeValue, float64(state.DirtyChunksLeft))
	ch <- prometheus.MustNewConstMetric(m.cleanChunksLeft, prometheus.GaugeValue, float64(state.CleanChunksLeft))
	ch <- prometheus.MustNewConstMetric(m.preallocatedLeft, prometheus.GaugeValue, float64(state.PreallocatedChunksLeft))

	stat := m.pool.FormatStat()
	ch <- prometheus.MustNewConstMetric(m.preAllocateTarget, prometheus.GaugeValue, float64(stat.PreAllocateNum))
	ch <- prometheus.MustNewConstMetric(m.allocateChunkNum, prometheus.GaugeValue, float64(stat.AllocateChunkNum()))
	wrong := 0.0
	if stat.IsWrong() {
		wrong = 1.0
	}
	ch <- prometheus.MustNewConstMetric(m.formatWrong, prometheus.GaugeValue, wrong)
}
