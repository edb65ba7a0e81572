/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package version

import (
	"fmt"
	"runtime/debug"
)

// Version is overridden at build time:
//
//	go build -ldflags "-X github.com/Gust4dev/VECT/internal/version.Version=v0.3.0" ./cmd/vect
var Version = "dev"

// String returns the version plus the VCS revision when the binary carries build info.
func String() string {
	rev := ""
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				rev = s.Value[:7]
			}
		}
	}
	if rev == "" {
		return fmt.Sprintf("VECT %s", Version)
	}
	return fmt.Sprintf("VECT %s (%s)", Version, rev)
}
