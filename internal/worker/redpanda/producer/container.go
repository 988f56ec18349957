package producer

import (
	"fmt"

	"github.com/leshachaplin/loginpipe/internal/testingh"
)

// NewContainer starts a single node Redpanda broker advertising its host port.
func NewContainer(connectFn func(broker string) error) (*testingh.Container, error) {
	return testingh.NewContainer(testingh.Spec{
		Repository: "redpandadata/redpanda",
		Tag:        "latest",
		Port:       "9092/tcp",
		Cmd: func(host string, hostPort int) []string {
			return []string{
				"redpanda start",
				"--overprovisioned",
				"--smp 1",
				"--memory 1G",
				"--reserve-memory 0M",
				"--node-id 0",
				"--check=false",
				fmt.Sprintf("--advertise-kafka-addr %s:%v", host, hostPort),
			}
		},
	}, connectFn)
}
