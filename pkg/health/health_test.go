package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestRunReportsWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("snapshot", PingCheck(up))
	c.RegisterOptional("redis", PingCheck(down))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)

	c.Register("snapshot", PingCheck(down))
	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker()
	c.RegisterOptional("redis", PingCheck(down))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "degraded is still ready")

	c.Register("snapshot", PingCheck(down))
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSlowCheckIsCutOff(t *testing.T) {
	c := NewChecker()
	c.timeout = 10 * time.Millisecond
	c.Register("postgres", PingCheck(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Components["postgres"].Message)
	assert.Equal(t, []string{"postgres"}, c.Names())
}
