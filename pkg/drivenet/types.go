package drivenet

import (
	"fmt"

	ms "github.com/cyclopcam/drivenet/pkg/modelschema"
)

// XYZT is a trajectory of 33 points, each with a position, time, and standard deviation.
// For plan trajectories, T is the fixed native time grid.
// For lane lines and road edges, X is the fixed spatial grid and T is the plan's time at that distance.
// Only the plan's Position carries standard deviations; everything else leaves them zero.
type XYZT struct {
	X    [ms.TrajectorySize]float32 `json:"x"`
	Y    [ms.TrajectorySize]float32 `json:"y"`
	Z    [ms.TrajectorySize]float32 `json:"z"`
	T    [ms.TrajectorySize]float32 `json:"t"`
	XStd [ms.TrajectorySize]float32 `json:"xStd"`
	YStd [ms.TrajectorySize]float32 `json:"yStd"`
	ZStd [ms.TrajectorySize]float32 `json:"zStd"`
}

type LaneLine struct {
	XYZT
	Std  float32 `json:"std"`  // Lateral standard deviation of the line
	Prob float32 `json:"prob"` // Probability that the line exists
}

type RoadEdge struct {
	XYZT
	Std float32 `json:"std"`
}

// Lead is the predicted state of the vehicle ahead, for one prediction time
type Lead struct {
	T        [ms.LeadTrajLen]float32 `json:"t"`
	X        [ms.LeadTrajLen]float32 `json:"x"`
	Y        [ms.LeadTrajLen]float32 `json:"y"`
	V        [ms.LeadTrajLen]float32 `json:"v"`
	A        [ms.LeadTrajLen]float32 `json:"a"`
	XStd     [ms.LeadTrajLen]float32 `json:"xStd"`
	YStd     [ms.LeadTrajLen]float32 `json:"yStd"`
	VStd     [ms.LeadTrajLen]float32 `json:"vStd"`
	AStd     [ms.LeadTrajLen]float32 `json:"aStd"`
	Prob     float32                 `json:"prob"`     // Probability that there is a lead vehicle
	ProbTime float32                 `json:"probTime"` // Seconds into the future that this prediction refers to
}

// DisengagePredictions holds the probability of each kind of disengagement,
// within each of the intervals ending at T.
type DisengagePredictions struct {
	T                   [ms.NumMetaIntervals]float32 `json:"t"`
	GasDisengageProbs   [ms.NumMetaIntervals]float32 `json:"gasDisengageProbs"`
	BrakeDisengageProbs [ms.NumMetaIntervals]float32 `json:"brakeDisengageProbs"`
	SteerOverrideProbs  [ms.NumMetaIntervals]float32 `json:"steerOverrideProbs"`
	Brake3MS2Probs      [ms.NumMetaIntervals]float32 `json:"brake3MetersPerSecondSquaredProbs"`
	Brake4MS2Probs      [ms.NumMetaIntervals]float32 `json:"brake4MetersPerSecondSquaredProbs"`
	Brake5MS2Probs      [ms.NumMetaIntervals]float32 `json:"brake5MetersPerSecondSquaredProbs"`
}

type MetaData struct {
	EngagedProb        float32                                   `json:"engagedProb"`
	DesireState        [ms.DesireLen]float32                     `json:"desireState"`
	DesirePrediction   [ms.DesirePredSteps][ms.DesireLen]float32 `json:"desirePrediction"`
	Disengage          DisengagePredictions                      `json:"disengagePredictions"`
	HardBrakePredicted bool                                      `json:"hardBrakePredicted"`
}

// Ego motion since the previous frame. Rotations are in radians.
type Pose struct {
	Trans    [3]float32 `json:"trans"`
	TransStd [3]float32 `json:"transStd"`
	Rot      [3]float32 `json:"rot"`
	RotStd   [3]float32 `json:"rotStd"`
}

// ParsedOutputs is everything that we decode from one model output tensor.
// It is a plain value with no references into the decoder, so it is safe to keep.
type ParsedOutputs struct {
	PlanHypothesis  int                        `json:"planHypothesis"` // Index of the winning plan hypothesis
	PlanT           [ms.TrajectorySize]float32 `json:"planT"`          // Plan time at each of the XIdxs distances
	Position        XYZT                       `json:"position"`
	Velocity        XYZT                       `json:"velocity"`
	Acceleration    XYZT                       `json:"acceleration"`
	Orientation     XYZT                       `json:"orientation"`
	OrientationRate XYZT                       `json:"orientationRate"`
	LaneLines       [ms.NumLaneLines]LaneLine  `json:"laneLines"`
	RoadEdges       [ms.NumRoadEdges]RoadEdge  `json:"roadEdges"`
	Leads           [ms.LeadMHPSelection]Lead  `json:"leads"`
	Meta            MetaData                   `json:"meta"`
	Pose            Pose                       `json:"pose"`
	RawMeta         [ms.MetaSize]float32       `json:"-"`
	RawPose         [ms.PoseSize]float32       `json:"-"`
	Temporal        [ms.TemporalSize]float32   `json:"-"`               // Feed this back into the next inference
	NonFiniteInputs int                        `json:"nonFiniteInputs"` // Number of NaN/Inf values in the head
}

// Desire is a high level driving intent
type Desire int

const (
	DesireNone Desire = iota
	DesireTurnLeft
	DesireTurnRight
	DesireLaneChangeLeft
	DesireLaneChangeRight
	DesireKeepLeft
	DesireKeepRight
	DesireReserved // The model has 8 desire slots, but only 7 are defined
)

var desireNames = [ms.DesireLen]string{
	"none",
	"turnLeft",
	"turnRight",
	"laneChangeLeft",
	"laneChangeRight",
	"keepLeft",
	"keepRight",
	"reserved",
}

func (d Desire) String() string {
	if d < 0 || int(d) >= len(desireNames) {
		return fmt.Sprintf("Desire(%d)", int(d))
	}
	return desireNames[d]
}

// Returns the most likely entry of a desire distribution, and its probability.
// Ties go to the lower index.
func MostLikelyDesire(dist *[ms.DesireLen]float32) (Desire, float32) {
	best := 0
	for i := 1; i < len(dist); i++ {
		if dist[i] > dist[best] {
			best = i
		}
	}
	return Desire(best), dist[best]
}

// MostLikelyDesire returns the most likely current desire, and its probability
func (m *MetaData) MostLikelyDesire() (Desire, float32) {
	return MostLikelyDesire(&m.DesireState)
}
