// Package permission encodes sets of room capabilities into a single
// composite integer. Every capability is a distinct prime; a set is the
// product of its primes, and containment is an exact division.
//
// The prime 2 is reserved as the "no permission" sentinel: it is coprime to
// every capability prime and smaller than any of them, so it never satisfies
// a containment test.
package permission

import "sort"

// Capability is a single named action a member may perform in a room.
type Capability int64

// Capability primes. The values are persisted and must never change.
const (
	RemoveMember Capability = 31
	UpdateGroup  Capability = 29
	CloseGroup   Capability = 23
	LockGroup    Capability = 19
	AddMember    Capability = 17
	JoinGroup    Capability = 5
	SendMessage  Capability = 3
)

// Set is a composite permission: the product of the primes it contains.
type Set int64

// NoPermission is stored for memberships that hold no capability at all.
const NoPermission Set = 2

// All lists every capability in descending prime order.
var All = []Capability{RemoveMember, UpdateGroup, CloseGroup, LockGroup, AddMember, JoinGroup, SendMessage}

var names = map[Capability]string{
	RemoveMember: "remove_member",
	UpdateGroup:  "update_group",
	CloseGroup:   "close_group",
	LockGroup:    "lock_group",
	AddMember:    "add_member",
	JoinGroup:    "join_group",
	SendMessage:  "send_message",
}

// Presets assigned by role.
var (
	Member  = Encode(JoinGroup, SendMessage)
	Admin   = Member * Set(AddMember)
	Creator = Encode(All...)
)

// Encode returns the composite for caps. Duplicates count once and unknown
// values are ignored; an empty input yields NoPermission.
func Encode(caps ...Capability) Set {
	seen := make(map[Capability]struct{}, len(caps))
	out := Set(1)
	for _, c := range caps {
		if _, ok := names[c]; !ok {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out *= Set(c)
	}
	if out == 1 {
		return NoPermission
	}
	return out
}

// Has reports whether c is part of s.
func (s Set) Has(c Capability) bool {
	if s <= 0 {
		return false
	}
	if _, ok := names[c]; !ok {
		return false
	}
	return int64(s)%int64(c) == 0
}

// Capabilities recovers the capability set by factorization.
func (s Set) Capabilities() []Capability {
	out := make([]Capability, 0, len(All))
	for _, c := range All {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the snake_case names of the capabilities in s.
func (s Set) Names() []string {
	caps := s.Capabilities()
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, c.String())
	}
	return out
}

func (c Capability) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return "unknown"
}

// ParseName maps a wire name such as "send_message" back to its capability.
func ParseName(name string) (Capability, bool) {
	for c, n := range names {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Flags is the boolean projection of a Set exposed to clients that edit
// member permissions.
type Flags struct {
	RemoveMember bool `json:"remove_member"`
	UpdateGroup  bool `json:"update_group"`
	CloseGroup   bool `json:"close_group"`
	LockGroup    bool `json:"lock_group"`
	AddMember    bool `json:"add_member"`
	JoinGroup    bool `json:"join_group"`
	SendMessage  bool `json:"send_message"`
}

// ToFlags projects s.
func ToFlags(s Set) Flags {
	return Flags{
		RemoveMember: s.Has(RemoveMember),
		UpdateGroup:  s.Has(UpdateGroup),
		CloseGroup:   s.Has(CloseGroup),
		LockGroup:    s.Has(LockGroup),
		AddMember:    s.Has(AddMember),
		JoinGroup:    s.Has(JoinGroup),
		SendMessage:  s.Has(SendMessage),
	}
}

// FromFlags encodes the enabled flags.
func FromFlags(f Flags) Set {
	pairs := []struct {
		on bool
		c  Capability
	}{
		{f.RemoveMember, RemoveMember},
		{f.UpdateGroup, UpdateGroup},
		{f.CloseGroup, CloseGroup},
		{f.LockGroup, LockGroup},
		{f.AddMember, AddMember},
		{f.JoinGroup, JoinGroup},
		{f.SendMessage, SendMessage},
	}
	caps := make([]Capability, 0, len(pairs))
	for _, p := range pairs {
		if p.on {
			caps = append(caps, p.c)
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] > caps[j] })
	return Encode(caps...)
}
