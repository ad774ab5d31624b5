package registry

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/spectrum-hq/spectrum/pkg/cerr"
	"github.com/spectrum-hq/spectrum/pkg/storage"
)

const snapshotPath = "registry.yaml"

// Repository persists the registry snapshot. Implementations must round-trip
// a snapshot losslessly, preserving queue order exactly.
type Repository interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// YAMLRepository stores the snapshot as a single YAML document behind a
// storage.Storage, so the medium (local disk, S3) is an environment choice.
type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

// Load reads the current snapshot. A missing snapshot yields an empty
// registry at version zero; an unparseable one is reported as Corrupt and
// halts further mutation until repaired by hand.
func (r *YAMLRepository) Load(ctx context.Context) (*Snapshot, error) {
	data, err := r.storage.Read(ctx, snapshotPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NewSnapshot(), nil
		}
		return nil, cerr.NewError(cerr.Internal, "failed to read registry", err)
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, cerr.NewError(cerr.Corrupt, "registry snapshot is unparseable; refusing to guess at a valid state", err)
	}
	if snap.Tickets == nil {
		snap.Tickets = NewSnapshot().Tickets
	}
	if snap.Agents == nil {
		snap.Agents = NewSnapshot().Agents
	}
	return &snap, nil
}

// Save commits snap with compare-and-swap on Version: if the stored version
// has moved past the one snap was loaded at, the transaction is stale and
// must be retried from a fresh read, never merged.
func (r *YAMLRepository) Save(ctx context.Context, snap *Snapshot) error {
	stored, err := r.storedVersion(ctx)
	if err != nil {
		return err
	}
	if stored != snap.Version {
		return cerr.NewError(cerr.StaleSnapshot, fmt.Sprintf("registry moved from version %d to %d underneath the transaction", snap.Version, stored), nil)
	}
	snap.Version++
	data, err := yaml.Marshal(snap)
	if err != nil {
		snap.Version--
		return cerr.NewError(cerr.Internal, "failed to marshal registry", err)
	}
	if err := r.storage.Write(ctx, snapshotPath, data); err != nil {
		snap.Version--
		return cerr.NewError(cerr.Internal, "failed to write registry", err)
	}
	return nil
}

func (r *YAMLRepository) storedVersion(ctx context.Context) (uint64, error) {
	data, err := r.storage.Read(ctx, snapshotPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, nil
		}
		return 0, cerr.NewError(cerr.Internal, "failed to read registry", err)
	}
	var header struct {
		Version uint64 `yaml:"version"`
	}
	if err := yaml.Unmarshal(data, &header); err != nil {
		return 0, cerr.NewError(cerr.Corrupt, "registry snapshot is unparseable; refusing to guess at a valid state", err)
	}
	return header.Version, nil
}
