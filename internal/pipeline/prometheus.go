package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes training progress to Prometheus.
type Metrics struct {
	batchLoss     prometheus.Gauge
	batchDuration *prometheus.HistogramVec
	batchesTotal  *prometheus.CounterVec
	epochsTotal   prometheus.Counter
	charErrorRate prometheus.Gauge
	wordAccuracy  prometheus.Gauge
	bestCER       prometheus.Gauge
	checkpoints   prometheus.Counter
	stall         prometheus.Gauge
}

// NewMetrics registers the training metrics with reg. A nil registerer
// creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		batchLoss: factory.NewGauge(prometheus.GaugeOpts{
			Name: "htr_train_batch_loss",
			Help: "CTC loss of the most recent training batch",
		}),
		batchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "htr_batch_duration_seconds",
			Help:    "Duration of one batch including preprocessing",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"phase"}),
		batchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "htr_batches_total",
			Help: "Total number of processed batches",
		}, []string{"phase", "status"}),
		epochsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "htr_epochs_total",
			Help: "Total number of completed epochs",
		}),
		charErrorRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "htr_validation_char_error_rate",
			Help: "Character error rate of the last validation pass",
		}),
		wordAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "htr_validation_word_accuracy",
			Help: "Word accuracy of the last validation pass",
		}),
		bestCER: factory.NewGauge(prometheus.GaugeOpts{
			Name: "htr_best_char_error_rate",
			Help: "Best character error rate seen during training",
		}),
		checkpoints: factory.NewCounter(prometheus.CounterOpts{
			Name: "htr_checkpoints_saved_total",
			Help: "Total number of saved model snapshots",
		}),
		stall: factory.NewGauge(prometheus.GaugeOpts{
			Name: "htr_epochs_without_improvement",
			Help: "Consecutive epochs without character error rate improvement",
		}),
	}
}

func (m *Metrics) observeBatch(phase Phase, d time.Duration, loss float64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.batchesTotal.WithLabelValues(string(phase), status).Inc()
	if err != nil {
		return
	}
	m.batchDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
	if phase == PhaseTrain {
		m.batchLoss.Set(loss)
	}
}

func (m *Metrics) observeValidation(charErrorRate, wordAccuracy float64) {
	if m == nil {
		return
	}
	m.charErrorRate.Set(charErrorRate)
	m.wordAccuracy.Set(wordAccuracy)
}

func (m *Metrics) observeEpoch(policy *EarlyStopping) {
	if m == nil {
		return
	}
	m.epochsTotal.Inc()
	m.bestCER.Set(policy.Best)
	m.stall.Set(float64(policy.Stall))
}

func (m *Metrics) checkpointSaved() {
	if m == nil {
		return
	}
	m.checkpoints.Inc()
}
