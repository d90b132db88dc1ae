package diarizer

import (
	"context"
	"errors"
	"sort"

	"call-compliance-go/internal/types"
)

// ErrUnavailable marks collaborator outages; the pipeline retries these.
var ErrUnavailable = errors.New("diarization service unavailable")

// Diarizer partitions a recording into per-speaker segments.
type Diarizer interface {
	Diarize(ctx context.Context, audioRef string) (map[string][]types.Segment, error)
}

// Speakers converts raw diarization output into persisted speaker records:
// segments merged and deduplicated, speaking time totaled, the first
// speaker labeled as the agent.
func Speakers(callID string, raw map[string][]types.Segment) []types.Speaker {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	speakers := make([]types.Speaker, 0, len(ids))
	for _, id := range ids {
		merged := MergeSegments(raw[id])
		total := 0.0
		for _, seg := range merged {
			total += seg.Duration()
		}
		label := "Customer"
		if id == "SPEAKER_00" {
			label = "Agent"
		}
		speakers = append(speakers, types.Speaker{
			CallID:            callID,
			SpeakerID:         id,
			Label:             label,
			Segments:          merged,
			TotalSpeakingTime: total,
		})
	}
	return speakers
}

// MergeSegments merges overlapping or near-adjacent (within 0.5s) segments
// of one speaker, sorted by start time.
func MergeSegments(segments []types.Segment) []types.Segment {
	if len(segments) < 2 {
		return segments
	}
	ordered := make([]types.Segment, len(segments))
	copy(ordered, segments)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	merged := []types.Segment{ordered[0]}
	for _, cur := range ordered[1:] {
		last := &merged[len(merged)-1]
		if cur.Start <= last.End+0.5 {
			if cur.End > last.End {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// Interleaved flattens all speakers' segments into one start-ordered list,
// the shape the pressure check consumes.
func Interleaved(speakers []types.Speaker) []types.Segment {
	var all []types.Segment
	for _, sp := range speakers {
		all = append(all, sp.Segments...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Start < all[j].Start })
	return all
}

// Stub returns a fixed two-speaker layout. Deterministic, for tests and
// deployments without a diarization backend.
type Stub struct {
	Segments map[string][]types.Segment
	Err      error
}

func (s Stub) Diarize(context.Context, string) (map[string][]types.Segment, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Segments != nil {
		return s.Segments, nil
	}
	return map[string][]types.Segment{
		"SPEAKER_00": {
			{Start: 0.0, End: 5.2},
			{Start: 12.1, End: 18.7},
			{Start: 25.3, End: 35.8},
		},
		"SPEAKER_01": {
			{Start: 5.2, End: 12.1},
			{Start: 18.7, End: 25.3},
		},
	}, nil
}
