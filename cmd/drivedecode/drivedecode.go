package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/akamensky/argparse"
	"github.com/chewxy/math32"
	"github.com/cyclopcam/drivenet/pkg/drivenet"
	"github.com/cyclopcam/drivenet/pkg/floatpool"
	"github.com/cyclopcam/drivenet/pkg/stats"
	"github.com/cyclopcam/drivenet/pkg/tickfile"
	"github.com/cyclopcam/logs"
)

// Decode a recording of raw model outputs, and write the results as JSON

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// A float32 that is written as null when it is NaN or Inf, which JSON can't represent
type jsonFloat float32

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float32(f)
	if math32.IsNaN(v) || math32.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Condensed view of one tick
type tickSummary struct {
	Tick               int         `json:"tick"`
	PlanHypothesis     int         `json:"planHypothesis"`
	PlanEndX           jsonFloat   `json:"planEndX"` // Distance covered by the plan after 10 seconds
	Desire             string      `json:"desire"`
	DesireProb         jsonFloat   `json:"desireProb"`
	EngagedProb        jsonFloat   `json:"engagedProb"`
	LaneLineProbs      []jsonFloat `json:"laneLineProbs"`
	LeadProb           jsonFloat   `json:"leadProb"`
	LeadDistance       jsonFloat   `json:"leadDistance"`
	HardBrakePredicted bool        `json:"hardBrakePredicted"`
	NonFiniteInputs    int         `json:"nonFiniteInputs,omitempty"`
}

func summarize(tick int, out *drivenet.ParsedOutputs) *tickSummary {
	desire, desireProb := out.Meta.MostLikelyDesire()
	s := &tickSummary{
		Tick:               tick,
		PlanHypothesis:     out.PlanHypothesis,
		PlanEndX:           jsonFloat(out.Position.X[len(out.Position.X)-1]),
		Desire:             desire.String(),
		DesireProb:         jsonFloat(desireProb),
		EngagedProb:        jsonFloat(out.Meta.EngagedProb),
		LeadProb:           jsonFloat(out.Leads[0].Prob),
		LeadDistance:       jsonFloat(out.Leads[0].X[0]),
		HardBrakePredicted: out.Meta.HardBrakePredicted,
		NonFiniteInputs:    out.NonFiniteInputs,
	}
	for _, line := range out.LaneLines {
		s.LaneLineProbs = append(s.LaneLineProbs, jsonFloat(line.Prob))
	}
	return s
}

// Write v as indented JSON, followed by a newline.
// Returns false, and writes nothing, if v holds a value that JSON can't represent (NaN or Inf).
func writeTick(w io.Writer, v any) (bool, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		var unsupported *json.UnsupportedValueError
		if errors.As(err, &unsupported) {
			return false, nil
		}
		return false, err
	}
	_, err = w.Write(append(b, '\n'))
	return err == nil, err
}

func main() {
	parser := argparse.NewParser("drivedecode", "Decode a recording of driving model outputs")
	input := parser.String("i", "input", &argparse.Options{Help: "Recording of raw model outputs (little-endian float32)", Required: true})
	output := parser.String("o", "output", &argparse.Options{Help: "Output JSON file (default stdout)", Required: false, Default: ""})
	configFile := parser.String("c", "config", &argparse.Options{Help: "Decoder config file (.json or .yaml)", Required: false, Default: ""})
	full := parser.Flag("", "full", &argparse.Options{Help: "Write the complete decoded output of every tick, instead of a summary"})
	aligned := parser.Flag("", "aligned", &argparse.Options{Help: "Read ticks into page-aligned buffers"})
	maxTicks := parser.Int("n", "ticks", &argparse.Options{Help: "Stop after this many ticks (0 = all)", Required: false, Default: 0})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	check(err)

	config := drivenet.DefaultConfig()
	if *configFile != "" {
		config, err = drivenet.LoadConfig(*configFile)
		check(err)
	}

	inFile, err := os.Open(*input)
	check(err)
	defer inFile.Close()
	if st, err := inFile.Stat(); err == nil {
		if n, err := tickfile.CountTicks(st.Size()); err == nil {
			logger.Infof("%v contains %v ticks", *input, n)
		} else {
			logger.Warnf("%v", err)
		}
	}

	var out io.Writer = os.Stdout
	var outFile *os.File
	if *output != "" {
		outFile, err = os.Create(*output)
		check(err)
		out = outFile
	}

	pool := floatpool.NewSizePool(0)
	pool.PageAligned = *aligned
	decoder := drivenet.NewDecoder(logger, config, pool)
	reader := tickfile.NewReader(inFile, pool)

	parsed := &drivenet.ParsedOutputs{}
	nHardBrake := 0
	engaged := stats.NewSeries("engagedProb")
	planEnd := stats.NewSeries("planEndX")
	leadDist := stats.NewSeries("leadDistance")
	desires := []drivenet.Desire{}
	for *maxTicks == 0 || reader.Tick < *maxTicks {
		buf, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		check(err)
		tick := reader.Tick - 1
		err = decoder.DecodeInto(parsed, buf)
		reader.Release(buf)
		check(err)
		if parsed.Meta.HardBrakePredicted {
			nHardBrake++
		}
		engaged.Add(parsed.Meta.EngagedProb)
		planEnd.Add(parsed.Position.X[len(parsed.Position.X)-1])
		if parsed.Leads[0].Prob > 0.5 {
			leadDist.Add(parsed.Leads[0].X[0])
		}
		desire, _ := parsed.Meta.MostLikelyDesire()
		desires = append(desires, desire)
		var v any = summarize(tick, parsed)
		if *full {
			v = parsed
		}
		written, err := writeTick(out, v)
		check(err)
		if !written {
			logger.Warnf("Tick %v has %v NaN/Inf inputs, and its output can't be written as JSON. Skipping", tick, parsed.NonFiniteInputs)
		}
	}
	if outFile != nil {
		check(outFile.Close())
	}

	ds := decoder.Stats()
	logger.Infof("Decoded %v ticks. Average %v, max %v. Hard brake predicted on %v ticks", ds.Calls, ds.AverageTime, ds.MaxTime, nHardBrake)
	for _, s := range []*stats.Series{engaged, planEnd, leadDist} {
		logger.Infof("%v", s)
	}
	if mode, count := stats.Mode(desires); count != 0 {
		logger.Infof("Most common desire: %v (%v ticks)", mode, count)
	}
}
