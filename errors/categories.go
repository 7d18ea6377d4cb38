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

package errors

// Kind classifies a curated error into one of the recovery categories used
// throughout the DWARF engine.
type Kind int

const (
	// BadData covers malformed sections, truncated records, bounds
	// overflow, inconsistent abbreviations and unknown required forms.
	// The operation that hit it fails; the previously-loaded model
	// remains usable.
	BadData Kind = iota

	// Unsupported covers DWARF constructs this engine recognises but
	// deliberately does not implement: a DWARF version outside 2-5, an
	// address size other than 4 or 8, max_ops_per_instruction != 1, an
	// unsupported CIE augmentation character, an unsupported line-info
	// field kind, or a CIE version other than 1.
	Unsupported

	// EntryNotFound covers reference lookups that failed, a missing
	// companion debug-info file, or an address not covered by any FDE or
	// line row.
	EntryNotFound

	// NoMemory covers allocation failure.
	NoMemory

	// MismatchedValues covers a size/length disagreement between two
	// pieces of serialized data that are expected to agree.
	MismatchedValues
)

func (k Kind) String() string {
	switch k {
	case BadData:
		return "bad data"
	case Unsupported:
		return "unsupported"
	case EntryNotFound:
		return "entry not found"
	case NoMemory:
		return "no memory"
	case MismatchedValues:
		return "mismatched values"
	default:
		return "unknown"
	}
}

// kinded pairs a curated error with a Kind so that callers can recover the
// Kind without resorting to matching against the message head.
type kinded struct {
	curated
	kind Kind
}

// Wrap attaches kind to err. If err is not a curated error (e.g. it was
// produced by fmt.Errorf directly) it is wrapped as a curated error with no
// values of its own.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	if c, ok := err.(curated); ok {
		return kinded{curated: c, kind: kind}
	}
	if k, ok := err.(kinded); ok {
		k.kind = kind
		return k
	}
	return kinded{curated: curated{message: err.Error()}, kind: kind}
}

// KindOf recovers the Kind attached to err via Wrap. An error that was never
// wrapped (including a plain, non-curated error) is reported as BadData,
// which is always a safe, fail-the-operation default.
func KindOf(err error) Kind {
	if k, ok := err.(kinded); ok {
		return k.kind
	}
	return BadData
}
