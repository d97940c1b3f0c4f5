// This file contains code to help debugging, and is separated from the
// rest in order not to litter the main code with debugging stuff

package engine

import (
	"fmt"
	"os"
)

// debugEnabled is set through the environment variable LFQUANT_DEBUG=1
var debugEnabled = os.Getenv("LFQUANT_DEBUG") == `1`

// debugDumpResults prints every peak of every run to stderr
func debugDumpResults(results *Results) {
	if !debugEnabled {
		return
	}
	for _, run := range results.RunOrder {
		label := run.Label()
		fmt.Fprintf(os.Stderr, "Run:%s peaks:%d\n", label, len(results.Peaks[label]))
		for i, p := range results.Peaks[label] {
			id := p.Identification()
			if id == nil {
				continue
			}
			apexRT := p.ApexRT()
			fmt.Fprintf(os.Stderr,
				"%d seq:%s z:%v apexRT:%f intensity:%g envelopes:%d mbr:%v randomRT:%v score:%g q:%g\n",
				i, id.ModifiedSequence, p.ChargeList(), apexRT, p.Intensity,
				len(p.Envelopes), p.IsMBR, p.RandomRT, p.MbrScore, p.MbrQValue)
		}
	}
}
