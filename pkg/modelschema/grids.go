package modelschema

// TIdxs are the native time points (seconds) of every plan trajectory step
var TIdxs = [TrajectorySize]float32{
	0, 0.00976562, 0.0390625, 0.08789062, 0.15625, 0.24414062, 0.3515625, 0.47851562,
	0.625, 0.79101562, 0.9765625, 1.18164062, 1.40625, 1.65039062, 1.9140625,
	2.19726562, 2.5, 2.82226562, 3.1640625, 3.52539062, 3.90625, 4.30664062, 4.7265625, 5.16601562,
	5.625, 6.10351562, 6.6015625, 7.11914062, 7.65625, 8.21289062, 8.7890625, 9.38476562, 10,
}

// XIdxs are the longitudinal distances (meters) at which lane lines and road edges are sampled
var XIdxs = [TrajectorySize]float32{
	0, 0.1875, 0.75, 1.6875, 3, 4.6875, 6.75, 9.1875, 12, 15.1875, 18.75, 22.6875,
	27, 31.6875, 36.75, 42.1875, 48, 54.1875, 60.75, 67.6875, 75, 82.6875, 90.75, 99.1875, 108, 117.1875,
	126.75, 136.6875, 147, 157.6875, 168.75, 180.1875, 192,
}

// MaxTime is the last native time point of the plan
const MaxTime = 10.0

// LeadTOffsets are the prediction times (seconds) of the three lead hypotheses sets
var LeadTOffsets = [LeadMHPSelection]float32{0, 2, 4}

// LeadTIdxs are the time points (seconds) of each step of a lead trajectory
var LeadTIdxs = [LeadTrajLen]float32{0, 2, 4, 6, 8, 10}

// MetaTIdxs are the end times (seconds) of the disengagement prediction intervals
var MetaTIdxs = [NumMetaIntervals]float32{2, 4, 6, 8, 10}
