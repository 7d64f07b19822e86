package drivenet

import (
	"github.com/cyclopcam/drivenet/pkg/activation"
	"github.com/cyclopcam/drivenet/pkg/floatpool"
	ms "github.com/cyclopcam/drivenet/pkg/modelschema"
)

// Decode the lead for prediction time index t (0, 1, 2 => 0s, 2s, 4s).
// Each lead hypothesis carries one selection logit per prediction time, in its last LeadMHPSelection floats.
func fillLead(dst *Lead, lead, leadProb []float32, t int, pool floatpool.Pool) {
	block := pool.Acquire(ms.LeadGroupSize)
	defer pool.Release(block)
	SelectBestInto(block, lead, ms.LeadMHPN, ms.LeadGroupSize, t-(ms.LeadMHPSelection-1))

	dst.Prob = activation.Sigmoid(leadProb[t])
	dst.ProbTime = ms.LeadTOffsets[t]
	for i := 0; i < ms.LeadTrajLen; i++ {
		mean := block[i*ms.LeadPredDim:]
		std := block[ms.LeadMHPVals+i*ms.LeadPredDim:]
		dst.T[i] = ms.LeadTIdxs[i]
		dst.X[i] = mean[0]
		dst.Y[i] = mean[1]
		dst.V[i] = mean[2]
		dst.A[i] = mean[3]
		dst.XStd[i] = activation.Exp(std[0])
		dst.YStd[i] = activation.Exp(std[1])
		dst.VStd[i] = activation.Exp(std[2])
		dst.AStd[i] = activation.Exp(std[3])
	}
}

func (d *Decoder) decodeLeads(dst *ParsedOutputs, buf []float32) {
	lead := ms.Lead.Slice(buf)
	leadProb := ms.LeadProb.Slice(buf)
	for t := 0; t < ms.LeadMHPSelection; t++ {
		fillLead(&dst.Leads[t], lead, leadProb, t, d.pool)
	}
}
