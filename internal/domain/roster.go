// Package domain contains pure, dependency-free domain models and types
// for the WebPA contribution scoring engine.
package domain

import (
	"fmt"
	"sort"
)

// Member is one student as known to the roster ground truth.
// Student numbers are treated as opaque strings even though they are
// often numeric, since leading zeros and non-digit schemes both occur.
type Member struct {
	// StudentNumber is the stable identifier used throughout processing.
	StudentNumber string `json:"student_number"`

	// StudentName is the display name, used only for messages and reports.
	StudentName string `json:"student_name"`

	// GroupName is the human-readable name of the member's group.
	GroupName string `json:"group_name"`

	// CanvasID is the LMS-internal identifier. It is opaque to the engine
	// and carried only so callers can correlate output with the LMS.
	CanvasID string `json:"canvas_id,omitempty"`
}

// Roster is the immutable group-membership ground truth for one run:
// a mapping from group identifier to that group's ordered members.
// Every member belongs to exactly one group.
type Roster struct {
	groups    map[int][]Member
	byStudent map[string]int // student number -> group id
}

// NewRoster builds a Roster from a group-to-members mapping, enforcing
// that the roster is non-empty and that no student number appears in
// more than one group (or twice in the same group).
func NewRoster(groups map[int][]Member) (Roster, error) {
	byStudent := make(map[string]int)
	copied := make(map[int][]Member, len(groups))
	total := 0
	for id, members := range groups {
		for _, m := range members {
			if m.StudentNumber == "" {
				return Roster{}, fmt.Errorf("group %d contains a member with no student number", id)
			}
			if existing, ok := byStudent[m.StudentNumber]; ok {
				return Roster{}, fmt.Errorf("%w: %s appears in group %d and group %d",
					ErrDuplicateMember, m.StudentNumber, existing, id)
			}
			byStudent[m.StudentNumber] = id
			total++
		}
		copied[id] = append([]Member(nil), members...)
	}
	if total == 0 {
		return Roster{}, ErrEmptyRoster
	}
	return Roster{groups: copied, byStudent: byStudent}, nil
}

// Groups returns the group identifiers in ascending order.
func (r Roster) Groups() []int {
	ids := make([]int, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Members returns a copy of the given group's member list, or nil when
// the group is unknown.
func (r Roster) Members(group int) []Member {
	members, ok := r.groups[group]
	if !ok {
		return nil
	}
	return append([]Member(nil), members...)
}

// MemberNumbers returns the student numbers expected in the given group.
func (r Roster) MemberNumbers(group int) []string {
	members := r.groups[group]
	numbers := make([]string, len(members))
	for i, m := range members {
		numbers[i] = m.StudentNumber
	}
	return numbers
}

// GroupName returns the human-readable name of the given group, taken
// from its first member. Empty when the group is unknown or empty.
func (r Roster) GroupName(group int) string {
	members := r.groups[group]
	if len(members) == 0 {
		return ""
	}
	return members[0].GroupName
}

// Contains reports whether the student number belongs to any group.
// This distinguishes a misrouted submission from outside the class
// entirely from one submitted to the wrong group.
func (r Roster) Contains(studentNumber string) bool {
	_, ok := r.byStudent[studentNumber]
	return ok
}

// GroupOf returns the group a student belongs to.
func (r Roster) GroupOf(studentNumber string) (int, bool) {
	group, ok := r.byStudent[studentNumber]
	return group, ok
}

// IsMember reports whether the student number is a member of the
// specific group.
func (r Roster) IsMember(group int, studentNumber string) bool {
	g, ok := r.byStudent[studentNumber]
	return ok && g == group
}

// Size returns the total number of students across all groups, i.e. the
// number of submissions expected for a full response rate.
func (r Roster) Size() int {
	return len(r.byStudent)
}

// StudentNumbers returns every student number on the roster, sorted.
func (r Roster) StudentNumbers() []string {
	numbers := make([]string, 0, len(r.byStudent))
	for n := range r.byStudent {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers
}
