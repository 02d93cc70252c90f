package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostconform/hostconform/pkg/manifest"
)

func staticObserver(items ...Item) Observer {
	return ObserverFunc(func(ctx context.Context, d manifest.Domain) ([]Item, error) {
		return items, nil
	})
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(manifest.DomainDockerVolume, staticObserver()))
	require.NoError(t, reg.Register(manifest.DomainPackageOfficial, staticObserver()))

	// Fixed execution order regardless of registration order.
	assert.Equal(t, []manifest.Domain{manifest.DomainPackageOfficial, manifest.DomainDockerVolume}, reg.Domains())

	assert.Error(t, reg.Register(manifest.Domain("bogus"), staticObserver()))
	assert.Error(t, reg.Register(manifest.DomainConfigFile, nil))

	_, ok := reg.Lookup(manifest.DomainConfigFile)
	assert.False(t, ok)
}

func TestGatherCollectsAllDomains(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(manifest.DomainPackageOfficial, staticObserver(
		Item{Domain: manifest.DomainPackageOfficial, ID: "bash"},
		Item{Domain: manifest.DomainPackageOfficial, ID: "git"},
	)))
	require.NoError(t, reg.Register(manifest.DomainServiceSystem, staticObserver(
		Item{Domain: manifest.DomainServiceSystem, ID: "sshd", Attrs: map[string]string{"state": "enabled", "active": "active"}},
	)))

	snap := Gather(context.Background(), reg, reg.Domains(), time.Second, zerolog.Nop())

	assert.Empty(t, snap.Unavailable)
	assert.Len(t, snap.Items[manifest.DomainPackageOfficial], 2)
	assert.Len(t, snap.Items[manifest.DomainServiceSystem], 1)
	assert.True(t, snap.Available(manifest.DomainServiceSystem))
}

func TestGatherUnavailableDomainDoesNotAbortOthers(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(manifest.DomainPackageOfficial, staticObserver(
		Item{Domain: manifest.DomainPackageOfficial, ID: "bash"},
	)))
	require.NoError(t, reg.Register(manifest.DomainDockerNetwork, ObserverFunc(
		func(ctx context.Context, d manifest.Domain) ([]Item, error) {
			return nil, errors.New("cannot connect to the docker daemon")
		},
	)))

	snap := Gather(context.Background(), reg, reg.Domains(), time.Second, zerolog.Nop())

	assert.True(t, snap.Available(manifest.DomainPackageOfficial))
	assert.False(t, snap.Available(manifest.DomainDockerNetwork))
	assert.ErrorIs(t, snap.Unavailable[manifest.DomainDockerNetwork], ErrUnavailable)
}

func TestGatherTimeoutTreatedAsUnavailable(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(manifest.DomainDockerCompose, ObserverFunc(
		func(ctx context.Context, d manifest.Domain) ([]Item, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return nil, nil
			}
		},
	)))

	start := time.Now()
	snap := Gather(context.Background(), reg, reg.Domains(), 20*time.Millisecond, zerolog.Nop())

	assert.False(t, snap.Available(manifest.DomainDockerCompose))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGatherMissingObserver(t *testing.T) {
	reg := NewRegistry()
	snap := Gather(context.Background(), reg, []manifest.Domain{manifest.DomainConfigFile}, 0, zerolog.Nop())
	assert.ErrorIs(t, snap.Unavailable[manifest.DomainConfigFile], ErrUnavailable)
}
