// Zaparoo Eject
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo Eject.
//
// Zaparoo Eject is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo Eject is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo Eject.  If not, see <http://www.gnu.org/licenses/>.

package devices

import (
	"context"

	"github.com/ZaparooProject/zaparoo-eject/pkg/mounts"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// Options configures a Classifier.
type Options struct {
	// LabelUtility returns a fresh label utility snapshot. It is called once
	// per ClassifyAll so the utility runs at most once per enumeration.
	LabelUtility func() LabelSource
	// Metadata is the device manager database. May be nil.
	Metadata    Metadata
	SysBlockDir string
	DefaultKind Kind
	MediaDirs   []string
	// IncludeNetwork lists network filesystems mounted under a media
	// directory.
	IncludeNetwork bool
}

// Classifier turns mount records into device descriptors.
type Classifier struct {
	metadata     Metadata
	labelUtility func() LabelSource
	defaultKind  Kind
	eligibility  []EligibilityRule
	labels       []LabelRule
}

// NewClassifier builds a Classifier reading sysfs through fs.
//
//nolint:gocritic // options struct copied on purpose
func NewClassifier(fs afero.Fs, opts Options) *Classifier {
	mediaDirs := opts.MediaDirs
	if len(mediaDirs) == 0 {
		mediaDirs = DefaultMediaDirs
	}
	sysBlockDir := opts.SysBlockDir
	if sysBlockDir == "" {
		sysBlockDir = DefaultSysBlockDir
	}
	defaultKind := opts.DefaultKind
	if defaultKind == "" {
		defaultKind = KindUSB
	}

	return &Classifier{
		metadata:     opts.Metadata,
		labelUtility: opts.LabelUtility,
		defaultKind:  defaultKind,
		eligibility: []EligibilityRule{
			BlockSourceRule(mediaDirs, opts.IncludeNetwork),
			MediaDirRule(mediaDirs),
			RemovableFlagRule(fs, sysBlockDir),
		},
		labels: []LabelRule{
			MetadataLabelRule(opts.Metadata),
			UtilityLabelRule(),
			MountPointLabelRule(),
		},
	}
}

// Classify returns the descriptor for r, or false when r is not removable
// media.
func (c *Classifier) Classify(ctx context.Context, r mounts.Record) (Descriptor, bool) {
	return c.classify(ctx, r, c.newUtility())
}

// ClassifyAll classifies records in order. Only the first descriptor for a
// given mount point is kept.
func (c *Classifier) ClassifyAll(ctx context.Context, records []mounts.Record) []Descriptor {
	utility := c.newUtility()
	seen := make(map[string]bool, len(records))
	result := make([]Descriptor, 0)

	for _, r := range records {
		d, ok := c.classify(ctx, r, utility)
		if !ok {
			continue
		}
		if seen[d.MountPoint] {
			log.Debug().Str("mountpoint", d.MountPoint).Msg("skipping duplicate mount point")
			continue
		}
		seen[d.MountPoint] = true
		result = append(result, d)
	}

	return result
}

func (c *Classifier) newUtility() LabelSource {
	if c.labelUtility == nil {
		return nil
	}
	return c.labelUtility()
}

func (c *Classifier) classify(ctx context.Context, r mounts.Record, utility LabelSource) (Descriptor, bool) {
	if r.Target == "" {
		return Descriptor{}, false
	}

	cand := newCandidate(r)
	cand.utility = utility

	verdict, ruleName := evaluate(ctx, c.eligibility, cand)
	if verdict != Accept {
		return Descriptor{}, false
	}

	label, labelRule := resolveLabel(ctx, c.labels, cand)
	kind := c.kind(ctx, cand)

	log.Debug().
		Str("source", r.Source).
		Str("mountpoint", r.Target).
		Str("rule", ruleName).
		Str("label", label).
		Str("label_rule", labelRule).
		Str("kind", string(kind)).
		Msg("removable device found")

	return Descriptor{
		Kind:       kind,
		Label:      label,
		MountPoint: r.Target,
		Block:      cand.Block,
		Mounted:    true,
	}, true
}

func (c *Classifier) kind(ctx context.Context, cand *Candidate) Kind {
	if cand.Kind != "" {
		return cand.Kind
	}
	if c.metadata != nil && cand.Block != "" {
		if bus, ok := c.metadata.LookupBus(ctx, cand.Block); ok && bus != "" {
			return KindForBus(bus)
		}
	}
	return c.defaultKind
}
