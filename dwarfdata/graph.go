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

package dwarfdata

import (
	"io"

	"github.com/bradleyjkemp/memviz"
)

// DumpGraph renders unit's DIE graph as Graphviz DOT to w. This is a
// development aid for inspecting the arena-with-back-edges shape of a
// parsed unit (parent pointers, sibling links, reference targets); it is
// never on a query hot path.
func DumpGraph(w io.Writer, unit *Unit) {
	memviz.Map(w, unit)
}
