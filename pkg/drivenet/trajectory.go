package drivenet

import (
	"github.com/cyclopcam/drivenet/pkg/activation"
	"github.com/cyclopcam/drivenet/pkg/gen"
	ms "github.com/cyclopcam/drivenet/pkg/modelschema"
)

// Column of x within each row of a plan hypothesis
const (
	planColPosition        = 0
	planColVelocity        = 3
	planColAcceleration    = 6
	planColOrientation     = 9
	planColOrientationRate = 12
)

// Where an XYZT trajectory lives inside a float buffer.
// Each of the 33 rows holds 'columns' values, and the stds follow the means as a second set of 33 rows.
type trajectoryLayout struct {
	start   int
	columns int
	// Column of x within a row. If negative, the trajectory is indexed by distance:
	// x comes from XIdxs, t from the resampled plan time, and y,z are at columns 0,1
	// (so columnOffset is -1).
	columnOffset int
	fillStd      bool // Read log-stds from the second set of rows, and exponentiate them
}

func fillXYZT(dst *XYZT, src []float32, l trajectoryLayout, planT *[ms.TrajectorySize]float32) {
	for i := 0; i < ms.TrajectorySize; i++ {
		row := l.start + i*l.columns + l.columnOffset
		stdRow := l.start + (ms.TrajectorySize+i)*l.columns + l.columnOffset
		if l.columnOffset >= 0 {
			dst.T[i] = ms.TIdxs[i]
			dst.X[i] = src[row]
			if l.fillStd {
				dst.XStd[i] = activation.Exp(src[stdRow])
			}
		} else {
			dst.T[i] = planT[i]
			dst.X[i] = ms.XIdxs[i]
		}
		dst.Y[i] = src[row+1]
		dst.Z[i] = src[row+2]
		if l.fillStd {
			dst.YStd[i] = activation.Exp(src[stdRow+1])
			dst.ZStd[i] = activation.Exp(src[stdRow+2])
		}
	}
}

// ResamplePlanTime computes, for each distance in XIdxs, the time at which the plan reaches that distance.
// plan is the winning plan hypothesis. Its x positions (column 0 of each row) must be non-decreasing.
// Once the plan runs out before reaching a distance, that distance and all further ones get the
// plan's last time (10 seconds). The result is non-decreasing and lies within [0, MaxTime].
func ResamplePlanTime(plan []float32, out *[ms.TrajectorySize]float32) {
	const n = ms.TrajectorySize
	const cols = ms.PlanMHPColumns
	lastT := ms.TIdxs[n-1]

	out[0] = ms.TIdxs[0]
	tidx := 0
	for xidx := 1; xidx < n; xidx++ {
		target := ms.XIdxs[xidx]
		// Move tidx up until the next native point is at least as far away as target
		for tidx < n-1 && plan[(tidx+1)*cols] < target {
			tidx++
		}
		if tidx == n-1 || !(plan[(tidx+1)*cols] >= target) {
			// The plan doesn't extend far enough
			for ; xidx < n; xidx++ {
				out[xidx] = lastT
			}
			break
		}
		x0 := plan[tidx*cols]
		x1 := plan[(tidx+1)*cols]
		t0 := ms.TIdxs[tidx]
		t1 := ms.TIdxs[tidx+1]
		dx := x1 - x0
		if !(dx > 0) {
			out[xidx] = t0
			continue
		}
		p := gen.Clamp((target-x0)/dx, 0, 1)
		out[xidx] = min(t0+p*(t1-t0), t1)
	}
}

func (d *Decoder) decodePlan(dst *ParsedOutputs, buf []float32) {
	plan := ms.Plan.Slice(buf)
	dst.PlanHypothesis = SelectBestInto(d.bestPlan[:], plan, ms.PlanMHPN, ms.PlanGroupSize, 0)
	ResamplePlanTime(d.bestPlan[:], &d.planT)
	dst.PlanT = d.planT

	layout := func(col int, std bool) trajectoryLayout {
		return trajectoryLayout{columns: ms.PlanMHPColumns, columnOffset: col, fillStd: std}
	}
	fillXYZT(&dst.Position, d.bestPlan[:], layout(planColPosition, true), &d.planT)
	fillXYZT(&dst.Velocity, d.bestPlan[:], layout(planColVelocity, false), &d.planT)
	fillXYZT(&dst.Acceleration, d.bestPlan[:], layout(planColAcceleration, false), &d.planT)
	fillXYZT(&dst.Orientation, d.bestPlan[:], layout(planColOrientation, false), &d.planT)
	fillXYZT(&dst.OrientationRate, d.bestPlan[:], layout(planColOrientationRate, false), &d.planT)
}

// Lane lines and road edges are sampled at fixed distances, and timestamped with the plan time
func (d *Decoder) decodeLanes(dst *ParsedOutputs, buf []float32) {
	for i := 0; i < ms.NumLaneLines; i++ {
		line := &dst.LaneLines[i]
		fillXYZT(&line.XYZT, buf, trajectoryLayout{
			start:        ms.LaneLines.Offset + i*ms.LaneLineStride,
			columns:      ms.LanePointDim,
			columnOffset: -1,
		}, &d.planT)
		line.Prob = activation.Sigmoid(buf[ms.LaneLinesProb.Offset+i*2+1])
		line.Std = activation.Exp(buf[ms.LaneLines.Offset+ms.LaneLineStride*(ms.NumLaneLines+i)])
	}
	for i := 0; i < ms.NumRoadEdges; i++ {
		edge := &dst.RoadEdges[i]
		fillXYZT(&edge.XYZT, buf, trajectoryLayout{
			start:        ms.RoadEdges.Offset + i*ms.LaneLineStride,
			columns:      ms.LanePointDim,
			columnOffset: -1,
		}, &d.planT)
		edge.Std = activation.Exp(buf[ms.RoadEdges.Offset+ms.LaneLineStride*(ms.NumRoadEdges+i)])
	}
}
