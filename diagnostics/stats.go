// This file is part of Gopher2600.
//
// Gopher2600 is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Gopher2600 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Gopher2600.  If not, see <https://www.gnu.org/licenses/>.

// Package diagnostics wires optional operational aids for a running
// load/query session. Nothing here sits on a query path; a host that
// never imports this package loses nothing but a runtime dashboard.
package diagnostics

import (
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// ServeStats starts a statsview-backed HTTP endpoint at addr, serving
// live goroutine/heap/GC statistics for a running load or query session.
// It returns a stop func that shuts the endpoint down; callers that never
// call it leak nothing beyond the listener itself exiting with the
// process.
func ServeStats(addr string) (stop func()) {
	viewer.SetConfiguration(viewer.WithAddr(addr))
	mgr := statsview.New()
	go mgr.Start()
	return func() {
		mgr.Stop()
	}
}
