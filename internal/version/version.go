/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package version holds build metadata injected at link time via -ldflags.
package version

// Version and GitSHA are overridden at build time with:
//
//	-ldflags "-X github.com/ntpauthd/ntpauthd/internal/version.Version=... \
//	          -X github.com/ntpauthd/ntpauthd/internal/version.GitSHA=..."
var (
	Version = "dev"
	GitSHA  = "unknown"
)

// String renders the build identity as shown by the version subcommand.
func String() string {
	return "ntpauthd " + Version + " (" + GitSHA + ")"
}
