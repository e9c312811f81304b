package database

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

var (
	DBOpenConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raadmin_db_open_connections",
			Help: "Number of open connections in the DB pool",
		},
		[]string{"db"},
	)
	DBIdleConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raadmin_db_idle_connections",
			Help: "Number of idle connections in the DB pool",
		},
		[]string{"db"},
	)
	DBInUseConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raadmin_db_in_use_connections",
			Help: "Number of connections currently in use",
		},
		[]string{"db"},
	)
)

func init() {
	prometheus.MustRegister(DBOpenConns, DBIdleConns, DBInUseConns)
}

// RecordPoolStats copies the pool counters of db into the gauges labeled name.
func RecordPoolStats(db *gorm.DB, name string) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	stats := sqlDB.Stats()
	DBOpenConns.WithLabelValues(name).Set(float64(stats.OpenConnections))
	DBIdleConns.WithLabelValues(name).Set(float64(stats.Idle))
	DBInUseConns.WithLabelValues(name).Set(float64(stats.InUse))
}

// CollectPoolStats records pool stats every interval until ctx is done.
func CollectPoolStats(ctx context.Context, db *gorm.DB, name string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	RecordPoolStats(db, name)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			RecordPoolStats(db, name)
		}
	}
}
