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
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZaparooProject/zaparoo-eject/pkg/mounts"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	// DevPrefix marks sources that are block devices.
	DevPrefix = "/dev/"

	// DefaultSysBlockDir holds one directory per whole disk with a
	// "removable" attribute.
	DefaultSysBlockDir = "/sys/block"
)

// DefaultMediaDirs are where desktop automounters place removable media.
var DefaultMediaDirs = []string{"/run/media/", "/media/"}

// networkFSTypes are filesystems accepted as network mounts when enabled.
var networkFSTypes = map[string]bool{
	"nfs":        true,
	"nfs4":       true,
	"cifs":       true,
	"smb3":       true,
	"fuse.sshfs": true,
}

// Verdict is the outcome of an eligibility rule.
type Verdict int

const (
	// Next defers to the following rule.
	Next Verdict = iota
	// Accept makes the mount eligible and stops evaluation.
	Accept
	// Reject excludes the mount and stops evaluation.
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	default:
		return "next"
	}
}

// Candidate is a mount record being classified.
type Candidate struct {
	utility LabelSource
	Record  mounts.Record
	// Block is the source with DevPrefix stripped, empty for non-block
	// sources.
	Block string
	// Kind is set by a rule that already knows the device kind.
	Kind Kind
}

func newCandidate(r mounts.Record) *Candidate {
	c := &Candidate{Record: r}
	if block, ok := strings.CutPrefix(r.Source, DevPrefix); ok {
		c.Block = block
	}
	return c
}

// EligibilityRule is one step of the removability decision.
type EligibilityRule struct {
	Check func(ctx context.Context, c *Candidate) Verdict
	Name  string
}

// LabelRule extracts a label candidate. An empty result defers to the next
// rule.
type LabelRule struct {
	Extract func(ctx context.Context, c *Candidate) string
	Name    string
}

// evaluate runs rules in order and returns the first non-Next verdict.
// Running out of rules rejects.
func evaluate(ctx context.Context, rules []EligibilityRule, c *Candidate) (Verdict, string) {
	for _, rule := range rules {
		if v := rule.Check(ctx, c); v != Next {
			return v, rule.Name
		}
	}
	return Reject, "fallthrough"
}

// resolveLabel runs rules in order and returns the first non-empty label.
func resolveLabel(ctx context.Context, rules []LabelRule, c *Candidate) (string, string) {
	for _, rule := range rules {
		if label := rule.Extract(ctx, c); strings.TrimSpace(label) != "" {
			return label, rule.Name
		}
	}
	return "", ""
}

// BlockSourceRule rejects anything that is not a block device. Network
// filesystems mounted under a media directory are accepted instead when
// includeNetwork is set.
func BlockSourceRule(mediaDirs []string, includeNetwork bool) EligibilityRule {
	return EligibilityRule{
		Name: "block_source",
		Check: func(_ context.Context, c *Candidate) Verdict {
			if c.Block != "" {
				return Next
			}
			if includeNetwork && networkFSTypes[c.Record.FSType] &&
				underAny(c.Record.Target, mediaDirs) {
				c.Kind = KindNetwork
				return Accept
			}
			return Reject
		},
	}
}

// MediaDirRule accepts mounts under a removable media directory regardless
// of the kernel removable flag, which some card readers and USB disks
// report as 0.
func MediaDirRule(mediaDirs []string) EligibilityRule {
	return EligibilityRule{
		Name: "media_dir",
		Check: func(_ context.Context, c *Candidate) Verdict {
			if underAny(c.Record.Target, mediaDirs) {
				return Accept
			}
			return Next
		},
	}
}

// RemovableFlagRule accepts devices whose parent disk reports removable=1
// in sysfs.
func RemovableFlagRule(fs afero.Fs, sysBlockDir string) EligibilityRule {
	return EligibilityRule{
		Name: "removable_flag",
		Check: func(_ context.Context, c *Candidate) Verdict {
			if IsRemovable(fs, sysBlockDir, c.Block) {
				return Accept
			}
			return Next
		},
	}
}

func underAny(target string, dirs []string) bool {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if strings.HasPrefix(target, strings.TrimSuffix(dir, "/")+"/") {
			return true
		}
	}
	return false
}

// ParentDisk returns the sysfs disk name for a partition short name:
// "sdb1" -> "sdb". When the digit-stripped name has no sysfs entry and
// ends in "p" (mmcblk0p1, nvme0n1p2) the "p" separator is dropped as well.
// A filesystem on the whole disk (mmcblk0, nvme0n1) is its own parent.
func ParentDisk(fs afero.Fs, sysBlockDir, block string) string {
	if block != "" && exists(fs, filepath.Join(sysBlockDir, block)) {
		return block
	}
	stripped := strings.TrimRight(block, "0123456789")
	if stripped == "" {
		return block
	}
	if exists(fs, filepath.Join(sysBlockDir, stripped)) {
		return stripped
	}
	if alt, ok := strings.CutSuffix(stripped, "p"); ok && alt != "" &&
		exists(fs, filepath.Join(sysBlockDir, alt)) {
		return alt
	}
	return stripped
}

// IsRemovable reads the removable attribute of the parent disk of block.
// Any read failure counts as not removable.
func IsRemovable(fs afero.Fs, sysBlockDir, block string) bool {
	if block == "" {
		return false
	}

	disk := ParentDisk(fs, sysBlockDir, block)
	path := filepath.Join(sysBlockDir, disk, "removable")
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Debug().Err(err).Str("path", path).Msg("failed to read removable flag")
		}
		return false
	}
	return strings.TrimSpace(string(data)) == "1"
}

func exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// MetadataLabelRule takes the label from the device manager database.
func MetadataLabelRule(md Metadata) LabelRule {
	return LabelRule{
		Name: "device_manager",
		Extract: func(ctx context.Context, c *Candidate) string {
			if md == nil || c.Block == "" {
				return ""
			}
			label, _ := md.LookupLabel(ctx, c.Block)
			return label
		},
	}
}

// UtilityLabelRule takes the label from the per-enumeration label utility
// snapshot (blkid), keyed by the full source path.
func UtilityLabelRule() LabelRule {
	return LabelRule{
		Name: "label_utility",
		Extract: func(ctx context.Context, c *Candidate) string {
			if c.utility == nil || c.Block == "" {
				return ""
			}
			label, _ := c.utility.LookupLabel(ctx, c.Record.Source)
			return label
		},
	}
}

// MountPointLabelRule falls back to the last non-empty mount point segment,
// then the device short name, then the mount point itself.
func MountPointLabelRule() LabelRule {
	return LabelRule{
		Name: "mount_point",
		Extract: func(_ context.Context, c *Candidate) string {
			if seg := LastSegment(c.Record.Target); seg != "" {
				return seg
			}
			if c.Block != "" {
				return c.Block
			}
			return c.Record.Target
		},
	}
}

// LastSegment returns the last non-empty "/" separated segment of path.
func LastSegment(path string) string {
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.TrimSpace(parts[i]) != "" {
			return parts[i]
		}
	}
	return ""
}
