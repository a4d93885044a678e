// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package health

import (
	"context"
	"fmt"
	"runtime"
	"syscall"
)

const (
	memoryThresholdDegraded = 85.0
	diskThresholdDegraded   = 85.0
)

// SystemCheck reports unhealthy when the process's memory or the
// working directory's disk usage crosses memoryThresholdDegraded /
// diskThresholdDegraded. It is registered under the name "system".
func SystemCheck(ctx context.Context) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	usedMB := m.Alloc / 1024 / 1024
	totalMB := m.Sys / 1024 / 1024
	var memPercent float64
	if totalMB > 0 {
		memPercent = float64(usedMB) / float64(totalMB) * 100
	}
	if memPercent >= memoryThresholdDegraded {
		return fmt.Errorf("memory usage at %.1f%%", memPercent)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(".", &stat); err != nil {
		return fmt.Errorf("stat disk: %w", err)
	}
	totalBytes := stat.Blocks * uint64(stat.Bsize)
	freeBytes := stat.Bfree * uint64(stat.Bsize)
	if totalBytes > 0 {
		usedPercent := float64(totalBytes-freeBytes) / float64(totalBytes) * 100
		if usedPercent >= diskThresholdDegraded {
			return fmt.Errorf("disk usage at %.1f%%", usedPercent)
		}
	}

	return nil
}
