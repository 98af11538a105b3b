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
//go:build !windows

package main

import (
	"os"
	"path/filepath"
	"strings"
)

// defaultDataDirs returns the directories searched for dictionaries when no
// --data-dir flag or dataDirs setting is given. System directories come
// first, followed by per-user directories.
func defaultDataDirs() []string {
	var dirs []string

	systemDirs := "/usr/local/share:/usr/share"
	if v := os.Getenv("XDG_DATA_DIRS"); v != "" {
		systemDirs = v
	}
	for _, d := range strings.Split(systemDirs, ":") {
		if d != "" {
			dirs = append(dirs, filepath.Join(d, "stardict", "dic"))
		}
	}

	if v := os.Getenv("STARDICT_DATA_DIR"); v != "" {
		dirs = append(dirs, filepath.Join(v, "dic"))
	}

	home, _ := os.UserHomeDir()
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" && home != "" {
		dataHome = filepath.Join(home, ".local", "share")
	}
	if dataHome != "" {
		dirs = append(dirs, filepath.Join(dataHome, "stardict", "dic"))
	}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".stardict", "dic"))
	}

	return uniqueDirs(dirs)
}
