// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package inventory supplies resource metadata to the governance engine.
//
// The metadata itself comes from an external collector; this package reads
// its YAML export from disk and answers lookups from memory. Absence of a
// file, or of a resource in it, is never treated as evidence of anything.
package inventory

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/costplane/costplane/app/types"
)

type fileResource struct {
	ResourceID   string            `yaml:"resource_id"`
	InstanceType string            `yaml:"instance_type"`
	GPUPresent   bool              `yaml:"gpu_present"`
	Region       string            `yaml:"region"`
	Attributes   map[string]string `yaml:"attributes"`
}

type inventoryFile struct {
	Resources []fileResource `yaml:"resources"`
}

// FileProvider is a MetadataProvider backed by a collector export on disk.
// The file loads lazily on first lookup and is cached for the provider's
// lifetime.
type FileProvider struct {
	path string

	once    sync.Once
	loadErr error
	byID    map[string]types.ResourceMetadata
}

// NewFileProvider creates a provider for the export at path. Nothing is read
// until the first Lookup.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// Lookup implements types.MetadataProvider.
func (p *FileProvider) Lookup(_ context.Context, resourceID string) (*types.ResourceMetadata, error) {
	p.once.Do(p.load)
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	meta, ok := p.byID[resourceID]
	if !ok {
		return nil, errors.Wrapf(types.ErrNotFound, "resource %q", resourceID)
	}
	return &meta, nil
}

func (p *FileProvider) load() {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		p.loadErr = errors.Wrapf(err, "reading inventory %s", p.path)
		return
	}
	var file inventoryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		p.loadErr = errors.Wrapf(types.ErrInvalidData, "parsing inventory %s: %v", p.path, err)
		return
	}
	p.byID = make(map[string]types.ResourceMetadata, len(file.Resources))
	for _, r := range file.Resources {
		if r.ResourceID == "" {
			continue
		}
		p.byID[r.ResourceID] = types.ResourceMetadata{
			ResourceID:   r.ResourceID,
			InstanceType: r.InstanceType,
			GPUPresent:   r.GPUPresent,
			Region:       r.Region,
			Attributes:   r.Attributes,
		}
	}
}
