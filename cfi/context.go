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

package cfi

import (
	dwarferrors "github.com/quietloop/dwarfengine/errors"
)

// context carries the state threaded through one replay of a CIE's and
// then an FDE's instruction stream, per §3.6: the location the replay has
// reached so far, the location it must stop at, the CIE's alignment
// factors and return-address register, the rule set being built, a
// snapshot of the rule set as it stood right after the CIE instructions
// ran (restored by DW_CFA_restore[_extended]), and a stack of saved rule
// sets for DW_CFA_remember_state/restore_state.
type context struct {
	targetLocation uint64
	location       uint64

	codeAlignment         uint64
	dataAlignment         int64
	returnAddressRegister int

	ruleSet        *RuleSet
	initialRuleSet *RuleSet
	ruleSetStack   []*RuleSet
}

// setLocation resets the replay cursor to initialLocation and records the
// PC the caller is trying to unwind at.
func (c *context) setLocation(targetLocation, initialLocation uint64) {
	c.targetLocation = targetLocation
	c.location = initialLocation
}

// advanceLocation moves the replay cursor forward by delta code-alignment
// units. It reports whether the instruction that produced delta should
// still take effect: once the cursor would pass the target PC, the
// current rule set already describes that PC and replay must stop
// without applying this instruction.
func (c *context) advanceLocation(delta uint64) (apply bool) {
	next := c.location + delta*c.codeAlignment
	if next > c.targetLocation {
		return false
	}
	c.location = next
	return true
}

// setLocationAbsolute implements DW_CFA_set_loc, which sets the location
// outright rather than advancing it.
func (c *context) setLocationAbsolute(location uint64) (apply bool, err error) {
	if location < c.location {
		return false, dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.CFISetLocBackwards, location, c.location))
	}
	if location > c.targetLocation {
		return false, nil
	}
	c.location = location
	return true, nil
}

// init allocates a fresh rule set sized for registerCount registers.
func (c *context) init(registerCount int) {
	c.ruleSet = NewRuleSet(registerCount)
}

// saveInitialRuleSet snapshots the current rule set as the "initial" one,
// the state DW_CFA_restore[_extended] returns a register to. It is called
// once, right after the CIE's instructions have been replayed and before
// the FDE's instructions run.
func (c *context) saveInitialRuleSet() {
	c.initialRuleSet = c.ruleSet.Clone()
}

// restoreRegisterRule implements DW_CFA_restore[_extended]: resets
// register reg's rule to whatever it was in the initial rule set.
func (c *context) restoreRegisterRule(reg int) {
	if c.initialRuleSet == nil {
		return
	}
	src := c.initialRuleSet.RegisterRule(reg)
	dst := c.ruleSet.RegisterRule(reg)
	if src == nil || dst == nil {
		return
	}
	*dst = *src
}

// pushRuleSet implements DW_CFA_remember_state.
func (c *context) pushRuleSet() {
	c.ruleSetStack = append(c.ruleSetStack, c.ruleSet.Clone())
}

// popRuleSet implements DW_CFA_restore_state.
func (c *context) popRuleSet() error {
	n := len(c.ruleSetStack)
	if n == 0 {
		return dwarferrors.Wrap(dwarferrors.BadData,
			dwarferrors.Errorf(dwarferrors.CFIEmptyRuleStack))
	}
	c.ruleSet = c.ruleSetStack[n-1]
	c.ruleSetStack = c.ruleSetStack[:n-1]
	return nil
}
