package testingh

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ory/dockertest"
	"github.com/ory/dockertest/docker"
)

var ErrDockerUnavailable = errors.New("docker is not reachable")

var hostName = os.Getenv("OVERRIDE_HOSTNAME")

func init() {
	const defaultHostName = "localhost"

	if hostName == "" {
		hostName = defaultHostName
	}
}

// Spec describes the image an integration test needs.
type Spec struct {
	Repository string
	Tag        string
	Env        []string
	// Port is the container port to publish, e.g. "5432/tcp".
	Port string
	// Cmd builds the container command once the host port is known.
	Cmd func(host string, hostPort int) []string
}

type Container struct {
	resource *dockertest.Resource
}

// NewContainer starts spec and retries connectFn with the published address
// until the service inside accepts connections.
func NewContainer(spec Spec, connectFn func(addr string) error) (*Container, error) {
	hostPort, err := getFreePort()
	if err != nil {
		return nil, fmt.Errorf("could not get free hostPort: %w", err)
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("could not connect to docker: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDockerUnavailable, err)
	}

	var cmd []string
	if spec.Cmd != nil {
		cmd = spec.Cmd(hostName, hostPort)
	}

	resource, err := pool.RunWithOptions(
		&dockertest.RunOptions{
			Repository: spec.Repository,
			Tag:        spec.Tag,
			Env:        spec.Env,
			Cmd:        cmd,
			Auth: docker.AuthConfiguration{
				Username: os.Getenv("ARTIFACTORY_USER"),
				Password: os.Getenv("ARTIFACTORY_PWD"),
			},
			PortBindings: map[docker.Port][]docker.PortBinding{
				docker.Port(spec.Port): {{
					HostIP:   hostName,
					HostPort: strconv.Itoa(hostPort),
				}},
			},
		}, func(config *docker.HostConfig) {
			config.AutoRemove = true
			config.RestartPolicy = docker.RestartPolicy{
				Name: "no",
			}
		})
	if err != nil {
		return nil, fmt.Errorf("could not create a container: %w", err)
	}

	container := &Container{
		resource: resource,
	}
	addr := fmt.Sprintf("%s:%s", hostName, resource.GetPort(spec.Port))
	// the service in the container might not accept connections yet
	if err := pool.Retry(func() error {
		return connectFn(addr)
	}); err != nil {
		_ = container.Purge()
		return nil, fmt.Errorf("could not connect to container: %w", err)
	}

	return container, nil
}

func (c *Container) Purge() error {
	return c.resource.Close()
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

