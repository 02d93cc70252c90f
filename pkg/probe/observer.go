package probe

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hostconform/hostconform/pkg/manifest"
	"github.com/hostconform/hostconform/pkg/observe"
)

// HostObserver observes the local host through the standard tooling:
// pacman for packages, systemctl for services, the docker CLI for
// container resources and the filesystem for tracked config files.
//
// Config files are observed against the declared set only. The rest of the
// filesystem is unbounded, so "all config files on the host" is not a
// meaningful observation; the observer checksums exactly the paths the
// manifest tracks.
type HostObserver struct {
	run CommandRunner

	mu       sync.RWMutex
	declared *manifest.Set

	// Root is prepended to config file paths. Defaults to "/".
	Root string

	logger zerolog.Logger
}

// NewHostObserver creates an observer scoped to the declared manifest.
func NewHostObserver(declared *manifest.Set, logger zerolog.Logger) *HostObserver {
	return &HostObserver{
		run:      ExecRunner,
		declared: declared,
		Root:     "/",
		logger:   logger,
	}
}

// SetDeclared swaps the declared set the config file observation is scoped
// to. Watch mode calls this after every manifest reload.
func (o *HostObserver) SetDeclared(declared *manifest.Set) {
	o.mu.Lock()
	o.declared = declared
	o.mu.Unlock()
}

// RegisterAll registers the observer for every domain.
func (o *HostObserver) RegisterAll(reg *observe.Registry) error {
	for _, d := range manifest.Domains {
		if err := reg.Register(d, o); err != nil {
			return err
		}
	}
	return nil
}

// Observe collects the current items of one domain.
func (o *HostObserver) Observe(ctx context.Context, domain manifest.Domain) ([]observe.Item, error) {
	switch domain {
	case manifest.DomainPackageOfficial:
		return o.packages(ctx, domain, "-Qqn")
	case manifest.DomainPackageAUR:
		return o.packages(ctx, domain, "-Qqm")
	case manifest.DomainServiceSystem:
		return o.services(ctx, domain, false)
	case manifest.DomainServiceUser:
		return o.services(ctx, domain, true)
	case manifest.DomainServiceMasked:
		return o.maskedServices(ctx, domain)
	case manifest.DomainConfigFile:
		return o.configFiles(domain)
	case manifest.DomainDockerNetwork:
		return o.dockerNetworks(ctx, domain)
	case manifest.DomainDockerVolume:
		return o.dockerVolumes(ctx, domain)
	case manifest.DomainDockerCompose:
		return o.composeProjects(ctx, domain)
	default:
		return nil, fmt.Errorf("%w: unknown domain %s", observe.ErrUnavailable, domain)
	}
}

func (o *HostObserver) packages(ctx context.Context, domain manifest.Domain, query string) ([]observe.Item, error) {
	out, err := o.run(ctx, "pacman", query)
	if err != nil {
		return nil, err
	}
	var items []observe.Item
	for _, name := range lines(out) {
		items = append(items, observe.Item{Domain: domain, ID: name})
	}
	return items, nil
}

// services merges unit-file state with runtime activity. Masked units are
// reported by the masked domain instead, so they are filtered out here.
func (o *HostObserver) services(ctx context.Context, domain manifest.Domain, user bool) ([]observe.Item, error) {
	states, err := o.unitFileStates(ctx, user)
	if err != nil {
		return nil, err
	}
	active, err := o.unitActivity(ctx, user)
	if err != nil {
		return nil, err
	}

	var items []observe.Item
	for name, state := range states {
		if state == "masked" {
			continue
		}
		attrs := map[string]string{"state": state}
		if a, ok := active[name]; ok {
			attrs["active"] = a
		} else {
			attrs["active"] = "inactive"
		}
		items = append(items, observe.Item{Domain: domain, ID: name, Attrs: attrs})
	}
	return items, nil
}

func (o *HostObserver) maskedServices(ctx context.Context, domain manifest.Domain) ([]observe.Item, error) {
	states, err := o.unitFileStates(ctx, false)
	if err != nil {
		return nil, err
	}
	var items []observe.Item
	for name, state := range states {
		if state != "masked" {
			continue
		}
		items = append(items, observe.Item{
			Domain: domain,
			ID:     name,
			Attrs:  map[string]string{"state": "masked"},
		})
	}
	return items, nil
}

func (o *HostObserver) unitFileStates(ctx context.Context, user bool) (map[string]string, error) {
	args := []string{"list-unit-files", "--type=service", "--no-legend", "--plain"}
	if user {
		args = append([]string{"--user"}, args...)
	}
	out, err := o.run(ctx, "systemctl", args...)
	if err != nil {
		return nil, err
	}

	states := make(map[string]string)
	for _, line := range lines(out) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		name := strings.TrimSuffix(fields[0], ".service")
		states[name] = fields[1]
	}
	return states, nil
}

func (o *HostObserver) unitActivity(ctx context.Context, user bool) (map[string]string, error) {
	args := []string{"list-units", "--type=service", "--all", "--no-legend", "--plain"}
	if user {
		args = append([]string{"--user"}, args...)
	}
	out, err := o.run(ctx, "systemctl", args...)
	if err != nil {
		return nil, err
	}

	// Columns: UNIT LOAD ACTIVE SUB DESCRIPTION.
	active := make(map[string]string)
	for _, line := range lines(out) {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name := strings.TrimSuffix(fields[0], ".service")
		active[name] = fields[2]
	}
	return active, nil
}

// ConfigPath maps a config file identifier to its filesystem path. The
// identifier encodes the path with dots, so "etc.fstab" is /etc/fstab.
func (o *HostObserver) ConfigPath(id string) string {
	root := o.Root
	if root == "" {
		root = "/"
	}
	return filepath.Join(root, strings.ReplaceAll(id, ".", string(filepath.Separator)))
}

func (o *HostObserver) configFiles(domain manifest.Domain) ([]observe.Item, error) {
	o.mu.RLock()
	declared := o.declared
	o.mu.RUnlock()

	var items []observe.Item
	for _, e := range declared.Domain(domain) {
		path := o.ConfigPath(e.ID)
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		attrs := map[string]string{
			"state":    "tracked",
			"checksum": fmt.Sprintf("%x", sha256.Sum256(content)),
		}
		if info, err := os.Stat(path); err == nil {
			attrs["mode"] = fmt.Sprintf("%04o", info.Mode().Perm())
		}
		items = append(items, observe.Item{Domain: domain, ID: e.ID, Attrs: attrs})
	}
	return items, nil
}

func (o *HostObserver) dockerNetworks(ctx context.Context, domain manifest.Domain) ([]observe.Item, error) {
	out, err := o.run(ctx, "docker", "network", "ls", "--format", "{{.Name}}\t{{.Driver}}\t{{.Scope}}")
	if err != nil {
		return nil, err
	}
	var items []observe.Item
	for _, line := range lines(out) {
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		items = append(items, observe.Item{
			Domain: domain,
			ID:     fields[0],
			Attrs: map[string]string{
				"state":  "present",
				"driver": fields[1],
				"scope":  fields[2],
			},
		})
	}
	return items, nil
}

func (o *HostObserver) dockerVolumes(ctx context.Context, domain manifest.Domain) ([]observe.Item, error) {
	out, err := o.run(ctx, "docker", "volume", "ls", "--format", "{{.Name}}\t{{.Driver}}")
	if err != nil {
		return nil, err
	}
	var items []observe.Item
	for _, line := range lines(out) {
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		items = append(items, observe.Item{
			Domain: domain,
			ID:     fields[0],
			Attrs: map[string]string{
				"state":  "present",
				"driver": fields[1],
			},
		})
	}
	return items, nil
}

// composeProject is one entry of `docker compose ls --format json`.
type composeProject struct {
	Name        string `json:"Name"`
	Status      string `json:"Status"`
	ConfigFiles string `json:"ConfigFiles"`
}

func (o *HostObserver) composeProjects(ctx context.Context, domain manifest.Domain) ([]observe.Item, error) {
	out, err := o.run(ctx, "docker", "compose", "ls", "--format", "json")
	if err != nil {
		return nil, err
	}

	var projects []composeProject
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &projects); err != nil {
		return nil, fmt.Errorf("parsing compose ls output: %w", err)
	}

	var items []observe.Item
	for _, p := range projects {
		attrs := map[string]string{"state": composeState(p.Status)}
		if p.ConfigFiles != "" {
			// Multiple files are comma separated; the checksum covers
			// the first, which is the project's primary file.
			first := strings.SplitN(p.ConfigFiles, ",", 2)[0]
			if content, err := os.ReadFile(first); err == nil {
				attrs["checksum"] = fmt.Sprintf("%x", sha256.Sum256(content))
				attrs["source"] = first
			}
		}
		items = append(items, observe.Item{Domain: domain, ID: p.Name, Attrs: attrs})
	}
	return items, nil
}

// composeState normalizes "running(3)" style statuses to the manifest
// vocabulary.
func composeState(status string) string {
	status = strings.ToLower(status)
	if idx := strings.IndexByte(status, '('); idx > 0 {
		status = status[:idx]
	}
	if status == "running" {
		return "deployed"
	}
	return status
}
