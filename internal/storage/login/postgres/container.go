package postgres

import (
	"fmt"

	"github.com/leshachaplin/loginpipe/internal/testingh"
)

const (
	testUser     = "postgres"
	testPassword = "postgres"
	testDB       = "postgres"
)

// NewContainer starts a throwaway PostgreSQL server and hands connectFn its DSN.
func NewContainer(connectFn func(dsn string) error) (*testingh.Container, error) {
	return testingh.NewContainer(testingh.Spec{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=" + testUser,
			"POSTGRES_PASSWORD=" + testPassword,
			"POSTGRES_DB=" + testDB,
		},
		Port: "5432/tcp",
	}, func(addr string) error {
		return connectFn(fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", testUser, testPassword, addr, testDB))
	})
}
