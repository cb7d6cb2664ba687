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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadyLatchOneWay(t *testing.T) {
	var r readyLatch
	require.False(t, r.isReady())

	r.mark()
	require.True(t, r.isReady())

	// Marking again is a no-op; the latch never un-marks itself.
	r.mark()
	require.True(t, r.isReady())
}
