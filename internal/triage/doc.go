// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package triage runs authentication log scans and the analyst lookups around
them.

A scan fetches the accounts active in one window and their records over a
longer history window, then narrows them in three passes:

  - pass 1 scores every account in parallel and keeps those that fail and
    are not under investigation
  - pass 2 applies directory metadata (home location, creation date) and
    drops accounts whose activity it explains; it only runs when a
    Directory is configured
  - pass 3 moves records to the geolocation provider's answer when that is
    a better fit, scores again, and keeps what still fails

Survivors are ranked by fraud count then score and handed to the
ResultSink.

Everything learned from the directory and the IP providers is cached in the
fact cache. Failed provider lookups are remembered in memory so an address
that failed once is not fetched again by the same Service.

Long-running operations return a Task whose Done never blocks and whose
Wait blocks until the result is ready:

	st := svc.RunScan(ctx, sources.Last(24*time.Hour, now), sources.Last(14*24*time.Hour, now))
	for !st.Done() {
		fmt.Printf("%.0f%%\n", st.Progress()*100)
		time.Sleep(time.Second)
	}
	accounts, err := st.Wait()

Trace correlates a MAC address, IPv4 address or account name with the other
two through network logs; partial results are available from
TraceTask.Snapshot while it runs.
*/
package triage
