// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"errors"
	"fmt"

	"github.com/devblok/vkpresent/gfx"
)

// ErrNoQueueFamily is returned when no queue family has the required
// capabilities.
var ErrNoQueueFamily = errors.New("no queue family with required capabilities")

// QueueFamilies holds the queue families of a device classified by
// role. Each role lists family indices in ascending order.
type QueueFamilies struct {
	Graphics []uint32
	Compute  []uint32
	Transfer []uint32
	Present  []uint32

	// Families carries every family, with gfx.QueuePresentBit set on
	// those that can present.
	Families []QueueFamily
}

// ClassifyQueueFamilies sorts the queue families of pd into roles.
// Present support is queried against surface, a zero surface skips it.
func ClassifyQueueFamilies(pd PhysicalDevice, surface gfx.Surface) (QueueFamilies, error) {
	var qf QueueFamilies
	for _, family := range pd.QueueFamilies() {
		if family.Flags.Contains(gfx.QueueGraphicsBit) {
			qf.Graphics = append(qf.Graphics, family.Index)
		}
		if family.Flags.Contains(gfx.QueueComputeBit) {
			qf.Compute = append(qf.Compute, family.Index)
		}
		if family.Flags.Contains(gfx.QueueTransferBit) {
			qf.Transfer = append(qf.Transfer, family.Index)
		}

		family.Flags &^= gfx.QueuePresentBit
		if surface != 0 {
			supported, err := pd.SurfaceSupport(family.Index, surface)
			if err != nil {
				return QueueFamilies{}, fmt.Errorf("surface support of family %d: %w", family.Index, err)
			}
			if supported {
				qf.Present = append(qf.Present, family.Index)
				family.Flags |= gfx.QueuePresentBit
			}
		}
		qf.Families = append(qf.Families, family)
	}
	return qf, nil
}

// QueueFamilyIndex picks the family that has every required capability
// and scores best on sharing: each preferred capability counts twice,
// each other capability counts against. Equal scores go to the higher
// index.
func QueueFamilyIndex(required, prefer gfx.QueueFlags, families QueueFamilies) (uint32, error) {
	var (
		best      uint32
		bestScore int
		found     bool
	)
	for _, family := range families.Families {
		if !family.Flags.Contains(required) {
			continue
		}
		score := 2*(family.Flags&prefer).Count() - (family.Flags &^ prefer).Count()
		if !found || score > bestScore || (score == bestScore && family.Index > best) {
			best, bestScore, found = family.Index, score, true
		}
	}
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrNoQueueFamily, required)
	}
	return best, nil
}

// Assignment is one queue family index per role.
type Assignment struct {
	Graphics uint32
	Compute  uint32
	Transfer uint32
	Present  uint32
}

// Resolve picks a family per role. Graphics prefers to share with
// present and the other way around; compute and transfer prefer to be
// on their own.
func Resolve(families QueueFamilies) (Assignment, error) {
	var (
		a   Assignment
		err error
	)
	if a.Graphics, err = QueueFamilyIndex(gfx.QueueGraphicsBit, gfx.QueuePresentBit, families); err != nil {
		return Assignment{}, fmt.Errorf("graphics: %w", err)
	}
	if a.Compute, err = QueueFamilyIndex(gfx.QueueComputeBit, 0, families); err != nil {
		return Assignment{}, fmt.Errorf("compute: %w", err)
	}
	if a.Transfer, err = QueueFamilyIndex(gfx.QueueTransferBit, 0, families); err != nil {
		return Assignment{}, fmt.Errorf("transfer: %w", err)
	}
	if a.Present, err = QueueFamilyIndex(gfx.QueuePresentBit, gfx.QueueGraphicsBit, families); err != nil {
		return Assignment{}, fmt.Errorf("present: %w", err)
	}
	return a, nil
}

// QueuePlan is how many queues to create from one family.
type QueuePlan struct {
	FamilyIndex uint32
	Count       uint32
	Priorities  []float32
}

// PlanQueues counts how many roles of a use each family and plans one
// queue per use, capped by the family's queue count. Plans are ordered
// by first use: graphics, compute, transfer, present.
func PlanQueues(a Assignment, families QueueFamilies) []QueuePlan {
	available := make(map[uint32]uint32, len(families.Families))
	for _, f := range families.Families {
		available[f.Index] = f.QueueCount
	}

	var plans []QueuePlan
	uses := map[uint32]int{}
	for _, index := range []uint32{a.Graphics, a.Compute, a.Transfer, a.Present} {
		if _, seen := uses[index]; !seen {
			plans = append(plans, QueuePlan{FamilyIndex: index})
		}
		uses[index]++
	}

	for i := range plans {
		count := uint32(uses[plans[i].FamilyIndex])
		if limit := available[plans[i].FamilyIndex]; count > limit && limit > 0 {
			count = limit
		}
		plans[i].Count = count
		plans[i].Priorities = make([]float32, count)
		for p := range plans[i].Priorities {
			plans[i].Priorities[p] = 1.0
		}
	}
	return plans
}

// QueueIndex returns which queue of its family a role uses under the
// plans. Roles sharing a family take consecutive queues until the
// family runs out, then share the last one.
func (a Assignment) QueueIndex(role gfx.QueueFlags, plans []QueuePlan) uint32 {
	order := []struct {
		role  gfx.QueueFlags
		index uint32
	}{
		{gfx.QueueGraphicsBit, a.Graphics},
		{gfx.QueueComputeBit, a.Compute},
		{gfx.QueueTransferBit, a.Transfer},
		{gfx.QueuePresentBit, a.Present},
	}
	taken := map[uint32]uint32{}
	for _, o := range order {
		n := taken[o.index]
		if o.role == role {
			for _, p := range plans {
				if p.FamilyIndex == o.index && n >= p.Count && p.Count > 0 {
					return p.Count - 1
				}
			}
			return n
		}
		taken[o.index] = n + 1
	}
	return 0
}
