package metrics

import (
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/openziti/storelab/kernel/cache"
	"github.com/openziti/storelab/kernel/model"
	"github.com/sirupsen/logrus"
)

const Measurement = "storelab_stores"

// PointWriter is the subset of the influx non-blocking write api the sink uses.
type PointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Sink writes a status-count point for every stores snapshot it is handed.
type Sink struct {
	writer PointWriter
	server string
	client influxdb2.Client
	now    func() time.Time
	log    *logrus.Entry

	mu     sync.Mutex
	unsub  func()
	closed bool
}

// NewInfluxSink connects to the configured bucket. Write errors are logged,
// never returned.
func NewInfluxSink(cfg model.InfluxConfig, server string) *Sink {
	client := influxdb2.NewClient(cfg.Url, cfg.Token)
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	s := NewSink(writeAPI, server)
	s.client = client

	errs := writeAPI.Errors()
	go func() {
		for err := range errs {
			s.log.WithError(err).Warn("unable to write metrics")
		}
	}()
	return s
}

func NewSink(writer PointWriter, server string) *Sink {
	return &Sink{
		writer: writer,
		server: server,
		now:    time.Now,
		log:    logrus.WithField("component", "metrics"),
	}
}

// Record writes one point for stores. Snapshots carrying an error are written
// with stale=true and the last good counts.
func (s *Sink) Record(stores []model.Store, snap cache.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	stats := model.CountByStatus(stores)
	p := influxdb2.NewPoint(Measurement,
		map[string]string{"server": s.server},
		map[string]interface{}{
			"total":        stats.Total,
			"ready":        stats.Ready,
			"provisioning": stats.Provisioning,
			"failed":       stats.Failed,
			"deleting":     stats.Deleting,
			"stale":        snap.Err != nil,
		},
		s.now())
	s.writer.WritePoint(p)
}

// Subscriber is implemented by session.Session.
type Subscriber interface {
	SubscribeStores(fn func([]model.Store, cache.Snapshot)) (func(), error)
}

func (s *Sink) Attach(sub Subscriber) error {
	unsub, err := sub.SubscribeStores(s.Record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

// Close detaches, flushes pending points and closes the client.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.writer.Flush()
	if s.client != nil {
		s.client.Close()
	}
}
