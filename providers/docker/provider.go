// Package docker implements the provider adapter for local Docker
// resources: images, networks, volumes, and containers.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/go-connections/nat"
)

type Provider struct {
	client *client.Client
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) ensureClient() error {
	if p.client != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	p.client = cli
	return nil
}

func (p *Provider) Create(ctx context.Context, resourceType string, props map[string]any) (string, map[string]any, error) {
	if err := p.ensureClient(); err != nil {
		return "", nil, err
	}

	switch resourceType {
	case "docker:image":
		return p.createImage(ctx, props)
	case "docker:network":
		return p.createNetwork(ctx, props)
	case "docker:volume":
		return p.createVolume(ctx, props)
	case "docker:container":
		return p.createContainer(ctx, props)
	}
	return "", nil, fmt.Errorf("unknown resource type: %s", resourceType)
}

// Update recreates the container under the same name and reports the new
// engine id in the outputs. Networks, volumes, and images have no settable
// attributes after creation.
func (p *Provider) Update(ctx context.Context, resourceType, id string, props map[string]any) (map[string]any, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}

	switch resourceType {
	case "docker:container":
		if err := p.removeContainer(ctx, id); err != nil {
			return nil, err
		}
		_, outputs, err := p.createContainer(ctx, props)
		return outputs, err
	}
	return nil, fmt.Errorf("in-place update not supported for %s; remove and re-declare the resource", resourceType)
}

func (p *Provider) Delete(ctx context.Context, resourceType, id string) error {
	if err := p.ensureClient(); err != nil {
		return err
	}

	switch resourceType {
	case "docker:image":
		_, err := p.client.ImageRemove(ctx, id, image.RemoveOptions{Force: true})
		if err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove image %s: %w", id, err)
		}
		return nil
	case "docker:network":
		if err := p.client.NetworkRemove(ctx, id); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove network %s: %w", id, err)
		}
		return nil
	case "docker:volume":
		if err := p.client.VolumeRemove(ctx, id, true); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove volume %s: %w", id, err)
		}
		return nil
	case "docker:container":
		return p.removeContainer(ctx, id)
	}
	return fmt.Errorf("unknown resource type: %s", resourceType)
}

func (p *Provider) Describe(ctx context.Context, resourceType, id string) (bool, map[string]any, error) {
	if err := p.ensureClient(); err != nil {
		return false, nil, err
	}

	switch resourceType {
	case "docker:container":
		inspect, err := p.client.ContainerInspect(ctx, id)
		if err != nil {
			if client.IsErrNotFound(err) {
				return false, nil, nil
			}
			return false, nil, fmt.Errorf("failed to inspect container %s: %w", id, err)
		}
		return true, map[string]any{
			"id":    inspect.ID,
			"name":  strings.TrimPrefix(inspect.Name, "/"),
			"state": inspect.State.Status,
		}, nil
	case "docker:network":
		inspect, err := p.client.NetworkInspect(ctx, id, network.InspectOptions{})
		if err != nil {
			if client.IsErrNotFound(err) {
				return false, nil, nil
			}
			return false, nil, fmt.Errorf("failed to inspect network %s: %w", id, err)
		}
		return true, map[string]any{
			"id":   inspect.ID,
			"name": inspect.Name,
		}, nil
	case "docker:volume":
		vol, err := p.client.VolumeInspect(ctx, id)
		if err != nil {
			if client.IsErrNotFound(err) {
				return false, nil, nil
			}
			return false, nil, fmt.Errorf("failed to inspect volume %s: %w", id, err)
		}
		return true, map[string]any{
			"id":   vol.Name,
			"name": vol.Name,
		}, nil
	}
	return false, nil, fmt.Errorf("describe not supported for %s", resourceType)
}

type imageConfig struct {
	Name         string `json:"name"`
	BuildContext string `json:"buildContext"`
	Dockerfile   string `json:"dockerfile"`
}

func (p *Provider) createImage(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg imageConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	if cfg.BuildContext != "" {
		tar, err := archive.TarWithOptions(cfg.BuildContext, &archive.TarOptions{})
		if err != nil {
			return "", nil, fmt.Errorf("failed to create build context tar: %w", err)
		}

		resp, err := p.client.ImageBuild(ctx, tar, types.ImageBuildOptions{
			Tags:       []string{cfg.Name},
			Dockerfile: cfg.Dockerfile,
			Remove:     true,
		})
		if err != nil {
			return "", nil, fmt.Errorf("failed to build image %s: %w", cfg.Name, err)
		}
		defer resp.Body.Close()
		io.Copy(os.Stderr, resp.Body)
	} else {
		if err := p.pullImage(ctx, cfg.Name); err != nil {
			return "", nil, err
		}
	}

	inspect, _, err := p.client.ImageInspectWithRaw(ctx, cfg.Name)
	if err != nil {
		return "", nil, fmt.Errorf("failed to inspect image %s: %w", cfg.Name, err)
	}

	return inspect.ID, map[string]any{
		"id":   inspect.ID,
		"name": cfg.Name,
	}, nil
}

func (p *Provider) pullImage(ctx context.Context, name string) error {
	reader, err := p.client.ImagePull(ctx, name, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", name, err)
	}
	defer reader.Close()
	io.Copy(io.Discard, reader)
	return nil
}

type networkConfig struct {
	Name     string            `json:"name"`
	Driver   string            `json:"driver"`
	Internal bool              `json:"internal"`
	Labels   map[string]string `json:"labels"`
}

func (p *Provider) createNetwork(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg networkConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	resp, err := p.client.NetworkCreate(ctx, cfg.Name, network.CreateOptions{
		Driver:   cfg.Driver,
		Internal: cfg.Internal,
		Labels:   cfg.Labels,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create network %s: %w", cfg.Name, err)
	}

	return resp.ID, map[string]any{
		"id":   resp.ID,
		"name": cfg.Name,
	}, nil
}

type volumeConfig struct {
	Name   string            `json:"name"`
	Driver string            `json:"driver"`
	Labels map[string]string `json:"labels"`
}

func (p *Provider) createVolume(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg volumeConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	vol, err := p.client.VolumeCreate(ctx, volume.CreateOptions{
		Name:   cfg.Name,
		Driver: cfg.Driver,
		Labels: cfg.Labels,
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to create volume %s: %w", cfg.Name, err)
	}

	return vol.Name, map[string]any{
		"id":   vol.Name,
		"name": vol.Name,
	}, nil
}

type containerConfig struct {
	Image       string             `json:"image"`
	Name        string             `json:"name"`
	Command     []string           `json:"command"`
	Ports       map[string]int     `json:"ports"`
	Env         map[string]string  `json:"env"`
	Networks    []string           `json:"networks"`
	Volumes     []string           `json:"volumes"`
	Labels      map[string]string  `json:"labels"`
	WorkingDir  string             `json:"workingDir"`
	User        string             `json:"user"`
	Restart     string             `json:"restart"`
	Healthcheck *healthcheckConfig `json:"healthcheck"`
}

type healthcheckConfig struct {
	Test        []string `json:"test"`
	Interval    string   `json:"interval"`
	Timeout     string   `json:"timeout"`
	StartPeriod string   `json:"startPeriod"`
	Retries     int      `json:"retries"`
}

func (p *Provider) createContainer(ctx context.Context, props map[string]any) (string, map[string]any, error) {
	var cfg containerConfig
	if err := decode(props, &cfg); err != nil {
		return "", nil, err
	}

	if err := p.pullImage(ctx, cfg.Image); err != nil {
		return "", nil, err
	}

	portBindings := nat.PortMap{}
	for hostPort, containerPort := range cfg.Ports {
		port := nat.Port(fmt.Sprintf("%d/tcp", containerPort))
		portBindings[port] = []nat.PortBinding{
			{HostIP: "0.0.0.0", HostPort: hostPort},
		}
	}

	var binds []string
	for _, v := range cfg.Volumes {
		parts := strings.SplitN(v, ":", 2)
		if strings.HasPrefix(parts[0], "./") || strings.HasPrefix(parts[0], "../") {
			if abs, err := filepath.Abs(parts[0]); err == nil {
				parts[0] = abs
				binds = append(binds, strings.Join(parts, ":"))
				continue
			}
		}
		binds = append(binds, v)
	}

	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
		Binds:        binds,
	}
	if len(cfg.Networks) > 0 {
		hostConfig.NetworkMode = container.NetworkMode(cfg.Networks[0])
	}
	if cfg.Restart != "" {
		hostConfig.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(cfg.Restart),
		}
	}

	config := &container.Config{
		Image:      cfg.Image,
		Cmd:        cfg.Command,
		Env:        mapToEnvList(cfg.Env),
		Labels:     cfg.Labels,
		WorkingDir: cfg.WorkingDir,
		User:       cfg.User,
	}

	if cfg.Healthcheck != nil {
		test := cfg.Healthcheck.Test
		if len(test) == 0 {
			test = []string{"NONE"}
		}
		interval, _ := time.ParseDuration(cfg.Healthcheck.Interval)
		timeout, _ := time.ParseDuration(cfg.Healthcheck.Timeout)
		startPeriod, _ := time.ParseDuration(cfg.Healthcheck.StartPeriod)

		config.Healthcheck = &container.HealthConfig{
			Test:        test,
			Interval:    interval,
			Timeout:     timeout,
			StartPeriod: startPeriod,
			Retries:     cfg.Healthcheck.Retries,
		}
	}

	resp, err := p.client.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, nil, cfg.Name)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create container %s: %w", cfg.Name, err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", nil, fmt.Errorf("failed to start container %s: %w", cfg.Name, err)
	}

	return resp.ID, map[string]any{
		"id":    resp.ID,
		"name":  cfg.Name,
		"image": cfg.Image,
	}, nil
}

func (p *Provider) removeContainer(ctx context.Context, id string) error {
	timeout := 10 // seconds
	_ = p.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	if err := p.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		if !client.IsErrNotFound(err) {
			return fmt.Errorf("failed to remove container %s: %w", id, err)
		}
	}
	return nil
}

func mapToEnvList(m map[string]string) []string {
	var env []string
	for k, v := range m {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func decode(props map[string]any, out any) error {
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to marshal properties: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid properties: %w", err)
	}
	return nil
}
