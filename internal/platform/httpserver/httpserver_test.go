package httpserver_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"medverify/internal/platform/httpserver"
)

func TestNew_WriteDeadlineOutlastsHandlerBudget(t *testing.T) {
	for _, budget := range []time.Duration{0, 90 * time.Second, 10 * time.Minute} {
		srv := httpserver.New(":0", http.NotFoundHandler(), budget)
		assert.GreaterOrEqual(t, srv.WriteTimeout-budget, httpserver.WriteMargin, budget.String())
		assert.GreaterOrEqual(t, srv.IdleTimeout, srv.WriteTimeout, budget.String())
	}
}
