package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DefaultImage runs chunks under a pinned bash when the manifest does not
// name an image.
const DefaultImage = "bash:5"

// DockerRunner executes script chunks inside a throwaway container with the
// working directory bind-mounted at /work. Scripts see only the image's
// tools and the environment the engine hands over, nothing from the host.
type DockerRunner struct {
	Image string

	Stdout io.Writer
	Stderr io.Writer

	client *client.Client
}

func (r *DockerRunner) ensureClient() error {
	if r.client != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	r.client = cli
	return nil
}

func (r *DockerRunner) image() string {
	if r.Image == "" {
		return DefaultImage
	}
	return r.Image
}

func (r *DockerRunner) Run(ctx context.Context, req Request) error {
	if err := r.ensureClient(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	if err := r.ensureImage(ctx); err != nil {
		return err
	}

	dir, err := filepath.Abs(req.Dir)
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	resp, err := r.client.ContainerCreate(ctx,
		&container.Config{
			Image:      r.image(),
			Cmd:        []string{"/bin/bash", "-c", shellCommand(req.Debug)},
			Env:        envList(req.Env),
			WorkingDir: "/work",
		},
		&container.HostConfig{
			Binds: []string{dir + ":/work"},
		},
		nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	// Removal must happen even when ctx is already past its deadline.
	defer r.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	if err := r.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	logsDone := make(chan struct{})
	go func() {
		defer close(logsDone)
		r.streamLogs(ctx, resp.ID)
	}()

	statusCh, errCh := r.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("script timed out after %s", timeoutOf(req))
		}
		return fmt.Errorf("failed to wait for container: %w", err)
	case status := <-statusCh:
		<-logsDone
		if status.StatusCode != 0 {
			return &ExitError{Code: int(status.StatusCode)}
		}
		return nil
	}
}

// ensureImage pulls the image, falling back to a locally present one when
// the registry is unreachable.
func (r *DockerRunner) ensureImage(ctx context.Context) error {
	reader, err := r.client.ImagePull(ctx, r.image(), image.PullOptions{})
	if err == nil {
		io.Copy(io.Discard, reader)
		reader.Close()
		return nil
	}
	if _, _, ierr := r.client.ImageInspectWithRaw(ctx, r.image()); ierr == nil {
		return nil
	}
	return fmt.Errorf("failed to pull image %s: %w", r.image(), err)
}

func (r *DockerRunner) streamLogs(ctx context.Context, id string) {
	rd, err := r.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return
	}
	defer rd.Close()

	stdout, stderr := r.Stdout, r.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	stdcopy.StdCopy(stdout, stderr, rd)
}
