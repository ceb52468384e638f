package api

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts progress sync traffic. A nil *Metrics records nothing.
type Metrics struct {
	posts    *prometheus.CounterVec
	attempts prometheus.Counter
	fetches  *prometheus.CounterVec
}

// NewMetrics creates and registers the client counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		posts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ggtrain_progress_posts_total",
			Help: "Progress POST outcomes after retries.",
		}, []string{"result"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ggtrain_progress_post_attempts_total",
			Help: "Individual progress POST attempts.",
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ggtrain_chapter_fetches_total",
			Help: "Chapter document loads by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.posts, m.attempts, m.fetches)
	}
	return m
}

func (m *Metrics) post(ok bool) {
	if m == nil {
		return
	}
	m.posts.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) attempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *Metrics) fetch(ok bool) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
