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

/*
Package protocol implements the NTPv4 client-mode wire packet and the
timestamp arithmetic needed to turn it into milliseconds since the Unix
epoch, without ever consulting the local wall clock.
*/
package protocol

// msToNTPEpoch is the number of milliseconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const msToNTPEpoch = int64(2208988800000)

// UnixMilli converts an NTP 64-bit fixed-point timestamp (32-bit seconds
// since 1900, 32-bit binary fraction of a second) into milliseconds since
// the Unix epoch.
func UnixMilli(seconds, fraction uint32) int64 {
	ms := int64(seconds)*1000 - msToNTPEpoch
	fracMs := (int64(fraction) * 1000) >> 32
	return ms + fracMs
}
