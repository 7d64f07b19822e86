// Package drivenet decodes the output tensor of the driving model into a plan, lane lines,
// road edges, lead vehicles, meta probabilities and ego pose.
package drivenet

import (
	"math"
	"time"

	"github.com/chewxy/math32"
	"github.com/cyclopcam/drivenet/pkg/activation"
	"github.com/cyclopcam/drivenet/pkg/floatpool"
	"github.com/cyclopcam/drivenet/pkg/logx"
	ms "github.com/cyclopcam/drivenet/pkg/modelschema"
	"github.com/cyclopcam/drivenet/pkg/perfstats"
	"github.com/cyclopcam/logs"
)

const degToRad = float32(math.Pi / 180)

// Keys for throttled warnings
const (
	warnKeySchema    = "schema"
	warnKeyNonFinite = "nonfinite"
)

// Decoder turns model output tensors into ParsedOutputs.
//
// A Decoder holds scratch space and the hard brake history, so it must only be used by one
// goroutine at a time, and it must see the ticks of a single model stream in order.
// If you have several streams, create a Decoder for each of them.
type Decoder struct {
	Log *logx.PrefixLogger

	config  Config
	pool    floatpool.Pool
	history *BrakeHistory

	// Scratch space, overwritten by every decode
	bestPlan [ms.PlanGroupSize]float32
	planT    [ms.TrajectorySize]float32

	hardBrake  bool // Result of the previous successful decode
	decodeTime perfstats.TimeAccumulator
	calls      perfstats.Counter
}

// Decoder statistics
type DecoderStats struct {
	Calls       int64
	Failures    int64
	AverageTime time.Duration
	MaxTime     time.Duration
}

// Create a new decoder.
// If config is nil, we use DefaultConfig(). If pool is nil, the decoder creates its own.
func NewDecoder(logger logs.Log, config *Config, pool floatpool.Pool) *Decoder {
	if config == nil {
		config = DefaultConfig()
	}
	if pool == nil {
		pool = floatpool.NewSizePool(0)
	}
	return &Decoder{
		Log:     logx.NewPrefixLogger(logger, "Decoder:"),
		config:  *config,
		pool:    pool,
		history: NewBrakeHistory(config.FCWThresholds()),
	}
}

// Decode parses one model output tensor into a new ParsedOutputs.
// buf must hold exactly modelschema.TotalSize floats. It is not retained.
func (d *Decoder) Decode(buf []float32) (*ParsedOutputs, error) {
	out := &ParsedOutputs{}
	if err := d.DecodeInto(out, buf); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeInto is Decode, but writes into caller-owned storage, which avoids allocating on every tick.
// If buf has the wrong size, a *modelschema.SchemaMismatchError is returned, and neither dst nor
// the decoder's hard brake history are modified.
func (d *Decoder) DecodeInto(dst *ParsedOutputs, buf []float32) error {
	start := time.Now()
	if err := ms.Validate(len(buf)); err != nil {
		d.calls.Add(false)
		d.Log.WarnOncef(warnKeySchema, "%v", err)
		return err
	}
	d.Log.Clear(warnKeySchema)

	*dst = ParsedOutputs{}
	dst.NonFiniteInputs = countNonFinite(buf[:ms.HeadSize])
	if dst.NonFiniteInputs != 0 && d.config.WarnNonFinite {
		d.Log.WarnOncef(warnKeyNonFinite, "Model output contains %v NaN/Inf values", dst.NonFiniteInputs)
	} else if dst.NonFiniteInputs == 0 {
		d.Log.Clear(warnKeyNonFinite)
	}

	d.decodePlan(dst, buf)
	d.decodeLanes(dst, buf)
	d.decodeLeads(dst, buf)

	copy(dst.RawMeta[:], ms.Meta.Slice(buf))
	copy(dst.RawPose[:], ms.Pose.Slice(buf))
	copy(dst.Temporal[:], ms.Temporal.Slice(buf))

	fillMeta(&dst.Meta, dst.RawMeta[:])
	dis := &dst.Meta.Disengage
	dst.Meta.HardBrakePredicted = d.history.Update(dis.Brake5MS2Probs[0], dis.Brake3MS2Probs[0])
	if dst.Meta.HardBrakePredicted != d.hardBrake {
		d.Log.Debugf("Hard brake predicted: %v", dst.Meta.HardBrakePredicted)
		d.hardBrake = dst.Meta.HardBrakePredicted
	}

	fillPose(&dst.Pose, &dst.RawPose)

	d.decodeTime.AddSince(start)
	d.calls.Add(true)
	return nil
}

// Pose is translation (3), rotation in degrees (3), and then the log-stds of both
func fillPose(dst *Pose, raw *[ms.PoseSize]float32) {
	for i := 0; i < 3; i++ {
		dst.Trans[i] = raw[i]
		dst.Rot[i] = raw[3+i] * degToRad
		dst.TransStd[i] = activation.Exp(raw[6+i])
		dst.RotStd[i] = activation.Exp(raw[9+i]) * degToRad
	}
}

func countNonFinite(x []float32) int {
	n := 0
	for _, v := range x {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			n++
		}
	}
	return n
}

// History returns the hard brake history. Mutating it affects future decodes.
func (d *Decoder) History() *BrakeHistory {
	return d.history
}

// Reset forgets the hard brake history, for example when the model stream restarts
func (d *Decoder) Reset() {
	d.history.Reset()
	d.hardBrake = false
}

func (d *Decoder) Config() Config {
	return d.config
}

func (d *Decoder) Stats() DecoderStats {
	return DecoderStats{
		Calls:       d.calls.Total,
		Failures:    d.calls.Failed,
		AverageTime: d.decodeTime.Average(),
		MaxTime:     d.decodeTime.Max,
	}
}
