package drivenet

import (
	"github.com/cyclopcam/drivenet/pkg/activation"
	ms "github.com/cyclopcam/drivenet/pkg/modelschema"
)

// Offsets of each disengagement series, relative to the engaged logit at meta[DesireLen].
// The series are interleaved, with MetaStride floats per interval.
const (
	metaGasOffset    = 1
	metaBrakeOffset  = 2
	metaSteerOffset  = 3
	metaBrake3Offset = 4
	metaBrake4Offset = 5
	metaBrake5Offset = 6
)

// Apply sigmoid to len(out) strided values of the meta segment
func fillSigmoid(meta, out []float32, offset int) {
	for i := range out {
		out[i] = activation.Sigmoid(meta[ms.DesireLen+offset+i*ms.MetaStride])
	}
}

// fillMeta decodes everything in the meta segment except the hard brake flag,
// which needs history (see BrakeHistory).
func fillMeta(dst *MetaData, meta []float32) {
	activation.Softmax(meta[:ms.DesireLen], dst.DesireState[:])

	predStart := ms.DesireLen + ms.OtherMetaSize
	for i := 0; i < ms.DesirePredSteps; i++ {
		s := predStart + i*ms.DesireLen
		activation.Softmax(meta[s:s+ms.DesireLen], dst.DesirePrediction[i][:])
	}

	dis := &dst.Disengage
	dis.T = ms.MetaTIdxs
	fillSigmoid(meta, dis.GasDisengageProbs[:], metaGasOffset)
	fillSigmoid(meta, dis.BrakeDisengageProbs[:], metaBrakeOffset)
	fillSigmoid(meta, dis.SteerOverrideProbs[:], metaSteerOffset)
	fillSigmoid(meta, dis.Brake3MS2Probs[:], metaBrake3Offset)
	fillSigmoid(meta, dis.Brake4MS2Probs[:], metaBrake4Offset)
	fillSigmoid(meta, dis.Brake5MS2Probs[:], metaBrake5Offset)

	dst.EngagedProb = activation.Sigmoid(meta[ms.DesireLen])
}
