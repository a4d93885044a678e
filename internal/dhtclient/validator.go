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

package dhtclient

// recordValidator accepts any record under the roselite namespace and
// prefers the longest value on conflict. Record authenticity is
// established one layer up, by the Ed25519 signature embedded in the
// manifest itself (see internal/pkgfile), so the DHT record layer does
// not need to re-validate signatures.
type recordValidator struct{}

func (recordValidator) Validate(key string, value []byte) error {
	return nil
}

func (recordValidator) Select(key string, values [][]byte) (int, error) {
	best := 0
	for i, v := range values {
		if len(v) > len(values[best]) {
			best = i
		}
	}
	return best, nil
}
