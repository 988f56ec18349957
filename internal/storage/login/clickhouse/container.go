package clickhouse

import (
	"github.com/leshachaplin/loginpipe/internal/testingh"
)

// NewContainer starts a throwaway ClickHouse server with database test_db.
func NewContainer(connectFn func(addr string) error) (*testingh.Container, error) {
	return testingh.NewContainer(testingh.Spec{
		Repository: "clickhouse/clickhouse-server",
		Tag:        "latest-alpine",
		Env: []string{
			"CLICKHOUSE_DB=test_db",
			"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT=1",
			"CLICKHOUSE_USER=su",
			"CLICKHOUSE_PASSWORD=su",
		},
		Port: "9000/tcp",
	}, connectFn)
}
