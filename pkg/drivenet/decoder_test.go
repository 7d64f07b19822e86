package drivenet

import (
	"errors"
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/drivenet/pkg/floatpool"
	ms "github.com/cyclopcam/drivenet/pkg/modelschema"
	"github.com/cyclopcam/logs"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-5)

const (
	metaBrake3Idx = ms.DesireLen + metaBrake3Offset // First interval of the 3 m/s² series
	metaBrake5Idx = ms.DesireLen + metaBrake5Offset
)

func newTestDecoder(t *testing.T) *Decoder {
	return NewDecoder(logs.NewTestingLog(t), nil, nil)
}

func zeroInput() []float32 {
	return make([]float32, ms.TotalSize)
}

func planIdx(hypothesis, row, col int) int {
	return ms.Plan.Offset + hypothesis*ms.PlanGroupSize + row*ms.PlanMHPColumns + col
}

func uniform[T any](n int, v T) []T {
	x := make([]T, n)
	for i := range x {
		x[i] = v
	}
	return x
}

func TestDecodeZeros(t *testing.T) {
	d := newTestDecoder(t)
	out, err := d.Decode(zeroInput())
	require.NoError(t, err)

	require.Equal(t, 0, out.PlanHypothesis)
	require.Equal(t, 0, out.NonFiniteInputs)

	// A stationary plan never reaches any distance
	require.Equal(t, float32(0), out.PlanT[0])
	for i := 1; i < ms.TrajectorySize; i++ {
		require.Equal(t, float32(ms.MaxTime), out.PlanT[i])
	}

	require.Equal(t, ms.TIdxs, out.Position.T)
	require.Empty(t, cmp.Diff(uniform(ms.TrajectorySize, float32(1)), out.Position.XStd[:]))
	require.Empty(t, cmp.Diff(uniform(ms.TrajectorySize, float32(1)), out.Position.ZStd[:]))
	require.Equal(t, [ms.TrajectorySize]float32{}, out.Velocity.XStd)
	require.Equal(t, ms.TIdxs, out.OrientationRate.T)

	for _, line := range out.LaneLines {
		require.Equal(t, float32(0.5), line.Prob)
		require.Equal(t, float32(1), line.Std)
		require.Equal(t, ms.XIdxs, line.X)
		require.Equal(t, out.PlanT, line.T)
	}
	for _, edge := range out.RoadEdges {
		require.Equal(t, float32(1), edge.Std)
		require.Equal(t, ms.XIdxs, edge.X)
	}

	for i, lead := range out.Leads {
		require.Equal(t, float32(0.5), lead.Prob)
		require.Equal(t, ms.LeadTOffsets[i], lead.ProbTime)
		require.Equal(t, ms.LeadTIdxs, lead.T)
		require.Empty(t, cmp.Diff(uniform(ms.LeadTrajLen, float32(1)), lead.AStd[:]))
	}

	meta := &out.Meta
	require.Equal(t, float32(0.5), meta.EngagedProb)
	require.Empty(t, cmp.Diff(uniform(ms.DesireLen, float32(0.125)), meta.DesireState[:], approx))
	for _, pred := range meta.DesirePrediction {
		require.Empty(t, cmp.Diff(uniform(ms.DesireLen, float32(0.125)), pred[:], approx))
	}
	half := [ms.NumMetaIntervals]float32{0.5, 0.5, 0.5, 0.5, 0.5}
	require.Equal(t, ms.MetaTIdxs, meta.Disengage.T)
	require.Equal(t, half, meta.Disengage.GasDisengageProbs)
	require.Equal(t, half, meta.Disengage.BrakeDisengageProbs)
	require.Equal(t, half, meta.Disengage.SteerOverrideProbs)
	require.Equal(t, half, meta.Disengage.Brake3MS2Probs)
	require.Equal(t, half, meta.Disengage.Brake4MS2Probs)
	require.Equal(t, half, meta.Disengage.Brake5MS2Probs)
	require.False(t, meta.HardBrakePredicted)

	// exp(0) is 1, but rotation stds are also converted from degrees
	deg := float32(math.Pi / 180)
	want := Pose{
		TransStd: [3]float32{1, 1, 1},
		RotStd:   [3]float32{deg, deg, deg},
	}
	require.Empty(t, cmp.Diff(want, out.Pose, approx))
}

func TestDecodeSchemaMismatch(t *testing.T) {
	d := newTestDecoder(t)
	buf := zeroInput()
	buf[ms.Pose.Offset] = 3
	buf[ms.Meta.Offset+metaBrake5Idx] = 4
	buf[ms.Meta.Offset+metaBrake3Idx] = 4

	out := &ParsedOutputs{}
	require.NoError(t, d.DecodeInto(out, buf))
	before := *out
	b5, b3 := d.History().Samples()

	for _, n := range []int{0, ms.HeadSize, ms.TotalSize - 1, ms.TotalSize + 1} {
		err := d.DecodeInto(out, make([]float32, n))
		require.ErrorIs(t, err, ms.ErrSchemaMismatch)
		var mismatch *ms.SchemaMismatchError
		require.True(t, errors.As(err, &mismatch))
		require.Equal(t, n, mismatch.Got)
		require.Equal(t, ms.TotalSize, mismatch.Want)
	}
	require.Equal(t, before, *out)
	b5After, b3After := d.History().Samples()
	require.Equal(t, b5, b5After)
	require.Equal(t, b3, b3After)

	res, err := d.Decode(nil)
	require.Nil(t, res)
	require.ErrorIs(t, err, ms.ErrSchemaMismatch)

	stats := d.Stats()
	require.EqualValues(t, 6, stats.Calls)
	require.EqualValues(t, 5, stats.Failures)
	require.LessOrEqual(t, stats.AverageTime, stats.MaxTime)
	require.Equal(t, 4, d.Log.Suppressed(warnKeySchema))
}

func TestDecodeSnapshotIsIndependent(t *testing.T) {
	d := newTestDecoder(t)
	buf := zeroInput()
	buf[ms.Pose.Offset] = 1
	first, err := d.Decode(buf)
	require.NoError(t, err)
	saved := *first

	buf[ms.Pose.Offset] = 2
	buf[planIdx(0, 3, 0)] = 9
	second, err := d.Decode(buf)
	require.NoError(t, err)

	require.Equal(t, saved, *first)
	require.Equal(t, float32(1), first.Pose.Trans[0])
	require.Equal(t, float32(2), second.Pose.Trans[0])
	require.Equal(t, float32(9), second.Position.X[3])
}

func TestDecodeInputNotModified(t *testing.T) {
	d := newTestDecoder(t)
	buf := zeroInput()
	for i := range buf {
		buf[i] = float32(i%17) - 8
	}
	orig := append([]float32{}, buf...)
	_, err := d.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, orig, buf)
}

func TestDecodePlan(t *testing.T) {
	buf := zeroInput()
	// Hypothesis 2 wins
	buf[planIdx(0, 2*ms.TrajectorySize, 0)] = 1
	buf[planIdx(2, 2*ms.TrajectorySize, 0)] = 5
	buf[planIdx(4, 2*ms.TrajectorySize, 0)] = 5
	for i := 0; i < ms.TrajectorySize; i++ {
		buf[planIdx(2, i, planColPosition)] = 10 * ms.TIdxs[i]
		buf[planIdx(2, i, planColPosition+1)] = float32(i)
		buf[planIdx(2, i, planColVelocity)] = 7
		buf[planIdx(2, i, planColAcceleration+2)] = -1
		buf[planIdx(2, i, planColOrientation+1)] = 0.25
		buf[planIdx(2, i, planColOrientationRate)] = 0.5
		buf[planIdx(2, ms.TrajectorySize+i, planColPosition)] = math32.Log(2)
		// Velocity has no std, so this must be ignored
		buf[planIdx(2, ms.TrajectorySize+i, planColVelocity)] = 3
	}

	d := newTestDecoder(t)
	out, err := d.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, 2, out.PlanHypothesis)

	for i := 0; i < ms.TrajectorySize; i++ {
		require.Equal(t, 10*ms.TIdxs[i], out.Position.X[i])
		require.Equal(t, float32(i), out.Position.Y[i])
		require.InDelta(t, 2, out.Position.XStd[i], 1e-5)
		require.Equal(t, float32(1), out.Position.YStd[i])
		require.Equal(t, float32(7), out.Velocity.X[i])
		require.Equal(t, float32(0), out.Velocity.XStd[i])
		require.Equal(t, float32(-1), out.Acceleration.Z[i])
		require.Equal(t, float32(0.25), out.Orientation.Y[i])
		require.Equal(t, float32(0.5), out.OrientationRate.X[i])
	}

	for i := 1; i < ms.TrajectorySize; i++ {
		if ms.XIdxs[i] <= 100 {
			require.InDelta(t, ms.XIdxs[i]/10, out.PlanT[i], 1e-4)
		} else {
			require.Equal(t, float32(ms.MaxTime), out.PlanT[i])
		}
	}
	// Lane lines are timestamped with the plan time
	require.Equal(t, out.PlanT, out.LaneLines[1].T)
	require.Equal(t, out.PlanT, out.RoadEdges[0].T)
}

func TestDecodeLanes(t *testing.T) {
	buf := zeroInput()
	for j := 0; j < ms.TrajectorySize; j++ {
		buf[ms.LaneLines.Offset+2*ms.LaneLineStride+j*2] = float32(j) * 0.5
		buf[ms.LaneLines.Offset+2*ms.LaneLineStride+j*2+1] = -1
		buf[ms.RoadEdges.Offset+ms.LaneLineStride+j*2] = 1.5
	}
	buf[ms.LaneLines.Offset+ms.LaneLineStride*(ms.NumLaneLines+2)] = math32.Log(3)
	buf[ms.LaneLinesProb.Offset+2*2+1] = 2
	// The first logit of each pair is not the existence probability
	buf[ms.LaneLinesProb.Offset+2*2] = -50
	buf[ms.RoadEdges.Offset+ms.LaneLineStride*(ms.NumRoadEdges+1)] = math32.Log(0.5)

	d := newTestDecoder(t)
	out, err := d.Decode(buf)
	require.NoError(t, err)

	line := out.LaneLines[2]
	require.Equal(t, float32(6), line.Y[12])
	require.Equal(t, float32(-1), line.Z[32])
	require.InDelta(t, 3, line.Std, 1e-5)
	require.InDelta(t, 0.880797, line.Prob, 1e-5)
	require.Equal(t, float32(0), out.LaneLines[1].Y[12])
	require.Equal(t, float32(0.5), out.LaneLines[3].Prob)

	edge := out.RoadEdges[1]
	require.Equal(t, float32(1.5), edge.Y[20])
	require.InDelta(t, 0.5, edge.Std, 1e-6)
	require.Equal(t, float32(1), out.RoadEdges[0].Std)
}

func TestDecodeLeads(t *testing.T) {
	buf := zeroInput()
	for h := 0; h < ms.LeadMHPN; h++ {
		for j := 0; j < ms.LeadMHPVals; j++ {
			buf[ms.Lead.Offset+h*ms.LeadGroupSize+j] = float32(h*100 + j)
		}
	}
	scoreIdx := func(h, t int) int {
		return ms.Lead.Offset + h*ms.LeadGroupSize + 2*ms.LeadMHPVals + t
	}
	buf[scoreIdx(3, 0)] = 5
	buf[scoreIdx(1, 1)] = 5
	buf[scoreIdx(4, 2)] = 5
	// log-std of hypothesis 4, step 1, velocity
	buf[ms.Lead.Offset+4*ms.LeadGroupSize+ms.LeadMHPVals+1*ms.LeadPredDim+2] = math32.Log(4)
	buf[ms.LeadProb.Offset+1] = 2

	pool := floatpool.NewSizePool(0)
	d := NewDecoder(logs.NewTestingLog(t), nil, pool)
	out, err := d.Decode(buf)
	require.NoError(t, err)

	require.Equal(t, float32(300), out.Leads[0].X[0])
	require.Equal(t, float32(301), out.Leads[0].Y[0])
	require.Equal(t, float32(310), out.Leads[0].V[2])
	require.Equal(t, float32(123), out.Leads[1].A[5])
	require.Equal(t, float32(404), out.Leads[2].X[1])
	require.InDelta(t, 4, out.Leads[2].VStd[1], 1e-5)
	require.Equal(t, float32(1), out.Leads[2].VStd[0])

	require.Equal(t, float32(0.5), out.Leads[0].Prob)
	require.InDelta(t, 0.880797, out.Leads[1].Prob, 1e-5)
	require.Equal(t, float32(4), out.Leads[2].ProbTime)

	// Scratch blocks are recycled
	_, err = d.Decode(buf)
	require.NoError(t, err)
	allocated, reused := pool.Stats()
	require.Equal(t, 1, allocated)
	require.Equal(t, 5, reused)
}

func TestDecodeMeta(t *testing.T) {
	buf := zeroInput()
	meta := buf[ms.Meta.Offset:]
	meta[int(DesireLaneChangeLeft)] = 10
	meta[ms.DesireLen] = -2
	meta[ms.DesireLen+ms.OtherMetaSize+2*ms.DesireLen+int(DesireKeepLeft)] = 10
	// Interval 3 of each series
	meta[ms.DesireLen+metaGasOffset+3*ms.MetaStride] = 1
	meta[ms.DesireLen+metaSteerOffset+3*ms.MetaStride] = -1
	meta[ms.DesireLen+metaBrake4Offset+3*ms.MetaStride] = 3

	d := newTestDecoder(t)
	out, err := d.Decode(buf)
	require.NoError(t, err)

	m := &out.Meta
	desire, p := m.MostLikelyDesire()
	require.Equal(t, DesireLaneChangeLeft, desire)
	require.Greater(t, p, float32(0.99))
	desire, _ = MostLikelyDesire(&m.DesirePrediction[2])
	require.Equal(t, DesireKeepLeft, desire)
	desire, _ = MostLikelyDesire(&m.DesirePrediction[1])
	require.Equal(t, DesireNone, desire)

	require.InDelta(t, 0.1192029, m.EngagedProb, 1e-6)
	require.InDelta(t, 0.7310586, m.Disengage.GasDisengageProbs[3], 1e-6)
	require.InDelta(t, 0.2689414, m.Disengage.SteerOverrideProbs[3], 1e-6)
	require.InDelta(t, 0.9525741, m.Disengage.Brake4MS2Probs[3], 1e-6)
	require.Equal(t, float32(0.5), m.Disengage.Brake4MS2Probs[2])
	require.Equal(t, float32(0.5), m.Disengage.BrakeDisengageProbs[3])

	require.Equal(t, float32(10), out.RawMeta[int(DesireLaneChangeLeft)])
}

func TestDecodePose(t *testing.T) {
	buf := zeroInput()
	copy(buf[ms.Pose.Offset:], []float32{1, 2, 3, 90, 180, -90, 0, 0, 0, math32.Log(2), 0, 0})
	d := newTestDecoder(t)
	out, err := d.Decode(buf)
	require.NoError(t, err)

	deg := float32(math.Pi / 180)
	want := Pose{
		Trans:    [3]float32{1, 2, 3},
		TransStd: [3]float32{1, 1, 1},
		Rot:      [3]float32{math32.Pi / 2, math32.Pi, -math32.Pi / 2},
		RotStd:   [3]float32{2 * deg, deg, deg},
	}
	require.Empty(t, cmp.Diff(want, out.Pose, approx))
	require.Equal(t, float32(90), out.RawPose[3])
}

func TestDecodeTemporal(t *testing.T) {
	buf := zeroInput()
	for i := 0; i < ms.TemporalSize; i++ {
		buf[ms.Temporal.Offset+i] = float32(i)
	}
	d := newTestDecoder(t)
	out, err := d.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, ms.Temporal.Slice(buf), out.Temporal[:])
}

func TestDecodeNonFinite(t *testing.T) {
	buf := zeroInput()
	buf[ms.LaneLines.Offset] = math32.NaN()
	buf[ms.Pose.Offset+9] = math32.Inf(1)
	// The temporal state is opaque, so it's not checked
	buf[ms.Temporal.Offset] = math32.NaN()

	d := newTestDecoder(t)
	out, err := d.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, 2, out.NonFiniteInputs)
	require.True(t, math32.IsNaN(out.LaneLines[0].Y[0]))
	require.False(t, math32.IsInf(out.Pose.RotStd[0], 1))

	_, err = d.Decode(buf)
	require.NoError(t, err)
	require.Equal(t, 1, d.Log.Suppressed(warnKeyNonFinite))

	_, err = d.Decode(zeroInput())
	require.NoError(t, err)
	require.Equal(t, 0, d.Log.Suppressed(warnKeyNonFinite))
}

func hardBrakeInput(brake5, brake3 float32) []float32 {
	buf := zeroInput()
	buf[ms.Meta.Offset+metaBrake5Idx] = brake5
	buf[ms.Meta.Offset+metaBrake3Idx] = brake3
	return buf
}

func TestDecodeHardBrake(t *testing.T) {
	d := newTestDecoder(t)
	high := hardBrakeInput(5, 5)
	low := hardBrakeInput(5, -5)

	sequence := [][]float32{high, high, high, high, high, low, high, high, high, high}
	expect := []bool{false, false, false, false, true, false, false, false, true, true}
	for i, buf := range sequence {
		out, err := d.Decode(buf)
		require.NoError(t, err)
		require.Equal(t, expect[i], out.Meta.HardBrakePredicted, "tick %v", i)
	}

	d.Reset()
	out, err := d.Decode(high)
	require.NoError(t, err)
	require.False(t, out.Meta.HardBrakePredicted)
}

func TestDecodersAreIndependent(t *testing.T) {
	a := newTestDecoder(t)
	b := newTestDecoder(t)
	high := hardBrakeInput(5, 5)
	for i := 0; i < 4; i++ {
		_, err := a.Decode(high)
		require.NoError(t, err)
	}
	out, err := b.Decode(high)
	require.NoError(t, err)
	require.False(t, out.Meta.HardBrakePredicted)

	out, err = a.Decode(high)
	require.NoError(t, err)
	require.True(t, out.Meta.HardBrakePredicted)

	b5, _ := b.History().Samples()
	require.Equal(t, 1, len(b5))
}

func TestDecoderConfig(t *testing.T) {
	// With an impossible threshold, the warning never fires
	config := DefaultConfig()
	config.FCW3ms2 = 1
	d := NewDecoder(logs.NewTestingLog(t), config, nil)
	require.Equal(t, float32(1), d.Config().FCW3ms2)
	for i := 0; i < 6; i++ {
		out, err := d.Decode(hardBrakeInput(5, 5))
		require.NoError(t, err)
		require.False(t, out.Meta.HardBrakePredicted)
	}
	// The decoder keeps its own copy
	config.FCW3ms2 = 0.5
	require.Equal(t, float32(1), d.Config().FCW3ms2)
}

func TestDecodeIntoReusesStorage(t *testing.T) {
	d := newTestDecoder(t)
	out := &ParsedOutputs{}
	buf := zeroInput()
	buf[ms.Pose.Offset] = 7
	require.NoError(t, d.DecodeInto(out, buf))
	require.Equal(t, float32(7), out.Pose.Trans[0])

	// Nothing from the previous tick survives
	out.NonFiniteInputs = 99
	require.NoError(t, d.DecodeInto(out, zeroInput()))
	require.Equal(t, float32(0), out.Pose.Trans[0])
	require.Equal(t, 0, out.NonFiniteInputs)
}

func BenchmarkDecode(b *testing.B) {
	logger, _ := logs.NewLog()
	d := NewDecoder(logger, nil, nil)
	buf := zeroInput()
	for i := range buf {
		buf[i] = float32(i%31)*0.1 - 1.5
	}
	out := &ParsedOutputs{}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.DecodeInto(out, buf); err != nil {
			b.Fatal(err)
		}
	}
}
