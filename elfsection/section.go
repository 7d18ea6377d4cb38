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

// Package elfsection opens an ELF image and exposes its sections by name,
// along with the metadata the CFI engine needs to tell a GCC-2-style
// .eh_frame apart from a GCC-4-style one.
package elfsection

import (
	"debug/elf"
	"encoding/binary"

	dwarferrors "github.com/quietloop/dwarfengine/errors"
)

// Info describes one named section.
type Info struct {
	Name       string
	LoadAddr   uint64
	FileOffset uint64
	Size       uint64
	Writable   bool
}

// Provider exposes the named sections of a single ELF image.
type Provider struct {
	f         *elf.File
	byteOrder binary.ByteOrder
	sections  map[string]*elf.Section
}

// Open maps the ELF image at path and returns a Provider over it.
func Open(path string) (*Provider, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, dwarferrors.Wrap(dwarferrors.EntryNotFound,
			dwarferrors.Errorf(dwarferrors.ELFOpen, err))
	}
	return FromFile(f), nil
}

// FromFile wraps an already-opened *elf.File.
func FromFile(f *elf.File) *Provider {
	p := &Provider{
		f:         f,
		byteOrder: f.ByteOrder,
		sections:  make(map[string]*elf.Section),
	}
	for _, s := range f.Sections {
		p.sections[s.Name] = s
	}
	return p
}

// ByteOrder reports the byte order of the underlying ELF image.
func (p *Provider) ByteOrder() binary.ByteOrder {
	return p.byteOrder
}

// AddressSize reports 4 or 8 depending on the ELF class.
func (p *Provider) AddressSize() int {
	if p.f.Class == elf.ELFCLASS64 {
		return 8
	}
	return 4
}

// Section returns the raw bytes of the named section, or nil if the
// section is not present.
func (p *Provider) Section(name string) ([]byte, error) {
	s, ok := p.sections[name]
	if !ok {
		return nil, nil
	}
	data, err := s.Data()
	if err != nil {
		return nil, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.SectionRead, name, err))
	}
	return data, nil
}

// Info returns the metadata for the named section, or false if the
// section is not present.
func (p *Provider) Info(name string) (Info, bool) {
	s, ok := p.sections[name]
	if !ok {
		return Info{}, false
	}
	return Info{
		Name:       name,
		LoadAddr:   s.Addr,
		FileOffset: s.Offset,
		Size:       s.Size,
		Writable:   s.Flags&elf.SHF_WRITE != 0,
	}, true
}

// HasSection reports whether the named section is present.
func (p *Provider) HasSection(name string) bool {
	_, ok := p.sections[name]
	return ok
}

// ExecutableSections returns the names of every section flagged
// executable (SHF_EXECINSTR).
func (p *Provider) ExecutableSections() []string {
	var names []string
	for _, s := range p.f.Sections {
		if s.Flags&elf.SHF_EXECINSTR != 0 {
			names = append(names, s.Name)
		}
	}
	return names
}

// Symbols returns the ELF symbol table, if any.
func (p *Provider) Symbols() ([]elf.Symbol, error) {
	syms, err := p.f.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, err
	}
	return syms, nil
}

// DebugLink returns the companion filename recorded in the
// .gnu_debuglink section, if present.
func (p *Provider) DebugLink() (string, bool, error) {
	data, err := p.Section(".gnu_debuglink")
	if err != nil {
		return "", false, err
	}
	if data == nil {
		return "", false, nil
	}
	i := 0
	for i < len(data) && data[i] != 0 {
		i++
	}
	return string(data[:i]), true, nil
}

// Close releases the underlying file.
func (p *Provider) Close() error {
	return p.f.Close()
}
