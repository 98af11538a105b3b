// Copyright 2025 Ian Lewis
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//go:build windows

package main

import (
	"os"
	"path/filepath"
)

// defaultDataDirs returns the directories searched for dictionaries when no
// --data-dir flag or dataDirs setting is given.
func defaultDataDirs() []string {
	var dirs []string

	// Dictionaries installed alongside the executable.
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Join(filepath.Dir(exe), "dic"))
	}

	if v := os.Getenv("STARDICT_DATA_DIR"); v != "" {
		dirs = append(dirs, filepath.Join(v, "dic"))
	}

	if v, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(v, "stardict", "dic"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		dirs = append(dirs, filepath.Join(home, ".stardict", "dic"))
	}

	return uniqueDirs(dirs)
}
