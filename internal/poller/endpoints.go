package poller

import (
	"strings"
	"time"

	"github.com/jpalmerr/landingboard/internal/store"
)

// jobsQuery filters the jobs listing server-side: newest ten, repair jobs and
// finished or pending ones excluded.
const jobsQuery = "pageSize=10&sortBy=createdAt&sortOrder=-1" +
	"&excludeType=repairDeployment&excludeType=repairVm&excludeType=repairSm" +
	"&excludeStatus=failed&excludeStatus=terminated&excludeStatus=pending"

var paths = map[store.Category]string{
	store.CategoryStatus:     "/landing/v2/status?n=100",
	store.CategoryCapacities: "/landing/v2/capacities?n=1",
	store.CategoryStats:      "/landing/v2/stats?n=1",
	store.CategoryJobs:       "/deploy/v1/jobs?" + jobsQuery,
}

// DefaultIntervals are the poll cadences per category.
var DefaultIntervals = map[store.Category]time.Duration{
	store.CategoryStatus:     100 * time.Millisecond,
	store.CategoryCapacities: 100 * time.Millisecond,
	store.CategoryStats:      100 * time.Millisecond,
	store.CategoryJobs:       300 * time.Millisecond,
}

// Path returns the path and query polled for c.
func Path(c store.Category) string {
	return paths[c]
}

// EndpointURL joins the API base URL with the path for c.
func EndpointURL(baseURL string, c store.Category) string {
	return strings.TrimRight(baseURL, "/") + Path(c)
}

// RequiresAuth reports whether c is served by an authenticated endpoint.
func RequiresAuth(c store.Category) bool {
	return c == store.CategoryJobs
}
