package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/infra"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const healthProbeTimeout = 3 * time.Second

func pingDB(ctx context.Context, db *gorm.DB) string {
	if db == nil {
		return "error"
	}
	sqlDB, err := db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return "error"
	}
	return "connected"
}

func pingRedis(ctx context.Context, rdb *redis.Client) string {
	if rdb == nil || rdb.Ping(ctx).Err() != nil {
		return "error"
	}
	return "connected"
}

// Health answers 503 when the database or the job queue is unreachable.
// The Siigo breaker is informative only: an open circuit delays invoices, it
// does not stop the counter from selling.
func Health(db *gorm.DB, rdb *redis.Client, siigoCB *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
		defer cancel()

		body := gin.H{
			"db":    pingDB(ctx, db),
			"redis": pingRedis(ctx, rdb),
			"siigo": "unknown",
		}
		if siigoCB != nil {
			snap := siigoCB.Snapshot()
			body["siigo"] = snap.State
			body["siigo_circuit"] = snap
		}

		status := http.StatusOK
		if body["db"] != "connected" || body["redis"] != "connected" {
			status = http.StatusServiceUnavailable
		}
		body["ok"] = status == http.StatusOK
		c.JSON(status, body)
	}
}
