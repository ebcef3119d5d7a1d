// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package parkrt

// RaceEnabled is true when the race detector is active.
// Used by tests to skip the hard real-time fairness assertion
// (TestParkingLotFairnessRate), where scheduling noise under the race
// detector's instrumentation makes the 1ms-window bound flaky.
const RaceEnabled = true
