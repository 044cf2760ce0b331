// File: internal/cmd/workbench/report.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package workbench

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/facade"
	"github.com/momentics/hioload-dispatch/workqueue"
)

// Report summarises one workbench invocation.
type Report struct {
	Config     facade.Config   `yaml:"config"`
	ID         string          `yaml:"id"`
	Producers  int             `yaml:"producers"`
	Attempted  int             `yaml:"attempted"`
	Queued     int             `yaml:"queued"`
	Failed     int             `yaml:"failed"`
	Elapsed    time.Duration   `yaml:"elapsed"`
	Throughput float64         `yaml:"throughput_per_sec"`
	Checksum   int64           `yaml:"checksum,omitempty"`
	Stats      workqueue.Stats `yaml:"stats"`
}

func writeReport(w io.Writer, format string, rep *Report) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	case "", "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintf(tw, "dispatcher\t%s (%s)\n", rep.Config.Name, rep.ID)
		fmt.Fprintf(tw, "waker\t%s\n", rep.Config.Waker)
		fmt.Fprintf(tw, "producers\t%d\n", rep.Producers)
		fmt.Fprintf(tw, "attempted\t%d\n", rep.Attempted)
		fmt.Fprintf(tw, "queued\t%d\n", rep.Queued)
		fmt.Fprintf(tw, "failed\t%d\n", rep.Failed)
		fmt.Fprintf(tw, "elapsed\t%s\n", rep.Elapsed)
		fmt.Fprintf(tw, "throughput\t%.0f/s\n", rep.Throughput)
		fmt.Fprintf(tw, "sends/recvs\t%d/%d\n", rep.Stats.Sends, rep.Stats.Recvs)
		fmt.Fprintf(tw, "send failures\t%d\n", rep.Stats.SendFailures)
		fmt.Fprintf(tw, "callback panics\t%d\n", rep.Stats.Panics)
		return tw.Flush()
	}
	return fmt.Errorf("output format %q: %w", format, api.ErrInvalidArgument)
}
