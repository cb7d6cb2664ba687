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

package ntpauth

import "sync/atomic"

// readyLatch is a one-way flag: it starts false and, once flipped to true,
// never flips back. It exists so the service can answer "have I ever
// synchronized" without taking the timebase's lock (spec §4.7).
type readyLatch struct {
	flag atomic.Bool
}

func (r *readyLatch) mark() {
	r.flag.Store(true)
}

func (r *readyLatch) isReady() bool {
	return r.flag.Load()
}
