// Package ensemble combines independent detector flags into one decision.
//
// Everything here is a pure function of the flag vectors it is given.
package ensemble

import (
	"errors"
	"fmt"

	"github.com/okian/tripqa/internal/domain/model"
)

// DefaultThreshold is the majority of the three baseline detectors.
const DefaultThreshold = 2

// Sentinel errors for invalid vote inputs.
var (
	ErrInvalidThreshold = errors.New("invalid vote threshold")
	ErrMemberMissing    = errors.New("ensemble member has no flags")
	ErrLengthMismatch   = errors.New("flag vectors differ in length")
	ErrNoMembers        = errors.New("ensemble has no members")
	ErrDuplicateMember  = errors.New("ensemble member listed twice")
)

// Decision is the ensemble outcome for one record.
type Decision struct {
	VoteCount int
	Anomaly   bool
}

// Vote counts, per record, how many members flagged it and marks the record
// anomalous when the count reaches threshold. Each member votes once.
func Vote(flags map[model.DetectorName]model.Flags, members []model.DetectorName, threshold int) ([]Decision, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	seen := make(map[model.DetectorName]bool, len(members))
	for _, name := range members {
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMember, name)
		}
		seen[name] = true
	}
	if threshold < 1 || threshold > len(members) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidThreshold, threshold, len(members))
	}
	n, err := commonLength(flags, members)
	if err != nil {
		return nil, err
	}

	out := make([]Decision, n)
	for _, name := range members {
		for i, f := range flags[name] {
			if f {
				out[i].VoteCount++
			}
		}
	}
	for i := range out {
		out[i].Anomaly = out[i].VoteCount >= threshold
	}
	return out, nil
}

// Anomalies projects decisions to a flag vector.
func Anomalies(decisions []Decision) model.Flags {
	out := make(model.Flags, len(decisions))
	for i, d := range decisions {
		out[i] = d.Anomaly
	}
	return out
}

// Union flags a record when any of the members flagged it.
func Union(flags map[model.DetectorName]model.Flags, members []model.DetectorName) (model.Flags, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	decisions, err := Vote(flags, members, 1)
	if err != nil {
		return nil, err
	}
	return Anomalies(decisions), nil
}

// Intersection flags a record when every member flagged it.
func Intersection(flags map[model.DetectorName]model.Flags, members []model.DetectorName) (model.Flags, error) {
	decisions, err := Vote(flags, members, len(members))
	if err != nil {
		return nil, err
	}
	return Anomalies(decisions), nil
}

func commonLength(flags map[model.DetectorName]model.Flags, members []model.DetectorName) (int, error) {
	n := -1
	for _, name := range members {
		f, ok := flags[name]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMemberMissing, name)
		}
		if n >= 0 && len(f) != n {
			return 0, fmt.Errorf("%w: %s has %d, want %d", ErrLengthMismatch, name, len(f), n)
		}
		n = len(f)
	}
	return n, nil
}
