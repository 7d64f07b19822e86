// Package modelschema describes the layout of the driving model's flat output tensor.
// Every offset is derived from the shape constants below, so changing a shape constant
// keeps the whole table consistent.
package modelschema

import (
	"errors"
	"fmt"
)

// Shape constants
const (
	DesireLen      = 8
	TrajectorySize = 33

	DesirePredSize   = 32
	OtherMetaSize    = 32
	NumMetaIntervals = 5
	MetaStride       = 6
	DesirePredSteps  = DesirePredSize / DesireLen

	PlanMHPN         = 5
	PlanMHPColumns   = 15
	PlanMHPVals      = PlanMHPColumns * TrajectorySize
	PlanMHPSelection = 1
	PlanGroupSize    = 2*PlanMHPVals + PlanMHPSelection

	LeadMHPN         = 5
	LeadTrajLen      = 6
	LeadPredDim      = 4
	LeadMHPVals      = LeadPredDim * LeadTrajLen
	LeadMHPSelection = 3
	LeadGroupSize    = 2*LeadMHPVals + LeadMHPSelection

	NumLaneLines    = 4
	NumRoadEdges    = 2
	LanePointDim    = 2 // y, z
	LaneLineStride  = TrajectorySize * LanePointDim
	LaneLinesSize   = NumLaneLines * 2 * LaneLineStride
	LaneLinesProbSz = NumLaneLines * 2
	RoadEdgesSize   = NumRoadEdges * 2 * LaneLineStride

	MetaSize     = DesireLen + OtherMetaSize + DesirePredSize
	PoseSize     = 12
	TemporalSize = 512
)

// Segment names
const (
	SegPlan          = "plan"
	SegLaneLines     = "laneLines"
	SegLaneLinesProb = "laneLinesProb"
	SegRoadEdges     = "roadEdges"
	SegLead          = "lead"
	SegLeadProb      = "leadProb"
	SegMeta          = "meta"
	SegPose          = "pose"
	SegTemporal      = "temporal"
)

// A named, contiguous run of floats inside the output tensor
type Segment struct {
	Name   string
	Offset int
	Length int
}

// End returns the index one past the last element of the segment
func (s Segment) End() int {
	return s.Offset + s.Length
}

// Slice returns the segment's view of buf. buf must already be validated.
func (s Segment) Slice(buf []float32) []float32 {
	return buf[s.Offset:s.End():s.End()]
}

var ErrSchemaMismatch = errors.New("model output does not match schema")
var ErrUnknownSegment = errors.New("unknown segment")

// SchemaMismatchError is returned when the length of a model output buffer differs from TotalSize
type SchemaMismatchError struct {
	Got  int
	Want int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%v: got %v floats, expected %v", ErrSchemaMismatch, e.Got, e.Want)
}

func (e *SchemaMismatchError) Unwrap() error {
	return ErrSchemaMismatch
}

// Segments is the ordered layout of the output tensor. The temporal feature vector trails the head.
var Segments []Segment

// Derived offsets, filled in from Segments
var (
	Plan          Segment
	LaneLines     Segment
	LaneLinesProb Segment
	RoadEdges     Segment
	Lead          Segment
	LeadProb      Segment
	Meta          Segment
	Pose          Segment
	Temporal      Segment

	HeadSize  int // Everything except the temporal feature vector (6097)
	TotalSize int // HeadSize + TemporalSize (6609)
)

var byName map[string]Segment

func buildSegments() {
	layout := []struct {
		name   string
		length int
	}{
		{SegPlan, PlanMHPN * PlanGroupSize},
		{SegLaneLines, LaneLinesSize},
		{SegLaneLinesProb, LaneLinesProbSz},
		{SegRoadEdges, RoadEdgesSize},
		{SegLead, LeadMHPN * LeadGroupSize},
		{SegLeadProb, LeadMHPSelection},
		{SegMeta, MetaSize},
		{SegPose, PoseSize},
		{SegTemporal, TemporalSize},
	}
	Segments = make([]Segment, 0, len(layout))
	byName = map[string]Segment{}
	offset := 0
	for _, l := range layout {
		s := Segment{Name: l.name, Offset: offset, Length: l.length}
		Segments = append(Segments, s)
		byName[s.Name] = s
		offset += l.length
	}

	Plan = byName[SegPlan]
	LaneLines = byName[SegLaneLines]
	LaneLinesProb = byName[SegLaneLinesProb]
	RoadEdges = byName[SegRoadEdges]
	Lead = byName[SegLead]
	LeadProb = byName[SegLeadProb]
	Meta = byName[SegMeta]
	Pose = byName[SegPose]
	Temporal = byName[SegTemporal]

	HeadSize = Temporal.Offset
	TotalSize = offset
}

// Lookup returns the segment with the given name
func Lookup(name string) (Segment, error) {
	s, ok := byName[name]
	if !ok {
		return Segment{}, fmt.Errorf("%w '%v'", ErrUnknownSegment, name)
	}
	return s, nil
}

// Validate checks that a buffer of n floats matches the schema
func Validate(n int) error {
	if n != TotalSize {
		return &SchemaMismatchError{Got: n, Want: TotalSize}
	}
	return nil
}

func init() {
	buildSegments()
	// The segments must tile the tensor with no gaps
	end := 0
	for _, s := range Segments {
		if s.Offset != end {
			panic(fmt.Sprintf("modelschema: segment %v starts at %v, expected %v", s.Name, s.Offset, end))
		}
		end = s.End()
	}
}
