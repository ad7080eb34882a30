// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import "github.com/tomtom215/vigil/internal/record"

// CorrelateVPN marks each record that correlates with the next (older)
// record. records must be sorted newest first. Marks are only ever set, so
// the last record is never marked.
func CorrelateVPN(records []record.VpnRecord) {
	for i := 1; i < len(records); i++ {
		if record.Correlates(&records[i-1], &records[i]) {
			records[i-1].CorrelatePrev = true
		}
	}
}
