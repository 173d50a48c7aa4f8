package jsonlcli

import (
	"fmt"
	"io"
	"iter"

	"github.com/oremus-labs/ol-jsonl/internal/events"
	"github.com/oremus-labs/ol-jsonl/internal/ndjson"
	"github.com/spf13/cobra"
)

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow stream lifecycle events",
	Long:  "Follow stream lifecycle events until interrupted or --limit events were printed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := mustClient()
		if err != nil {
			return err
		}
		return renderEvents(cmd.OutOrStdout(), cmd.ErrOrStderr(), c.Events(cmd.Context()), eventsLimit, outputFormat)
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 0, "Stop after N events (0 follows until interrupted)")
}

// renderEvents prints events as they arrive; the table is flushed per row.
func renderEvents(out, errOut io.Writer, seq iter.Seq2[events.Event, error], limit int, format string) error {
	tw := newTable(out)
	if format == "table" || format == "" {
		fmt.Fprintln(tw, "TIME\tTYPE\tSTREAM\tROUTE\tFRAMES")
	}
	rows := 0
	for evt, err := range seq {
		if err != nil {
			if ndjson.IsTerminal(err) {
				flushTable(tw)
				return err
			}
			printErrorLine(errOut, "skipping event: %v", err)
			continue
		}
		switch format {
		case "json":
			if err := printJSONLine(out, evt); err != nil {
				return err
			}
		case "yaml":
			if err := printYAML(out, evt); err != nil {
				return err
			}
		default:
			info := streamFields(evt.Data)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", relativeTime(evt.Timestamp), evt.Type, info["streamId"], info["route"], info["frames"])
			flushTable(tw)
		}
		rows++
		if limit > 0 && rows >= limit {
			break
		}
	}
	flushTable(tw)
	return nil
}

// streamFields reads the decoded payload of a lifecycle event.
func streamFields(data interface{}) map[string]interface{} {
	fields, _ := data.(map[string]interface{})
	out := map[string]interface{}{"streamId": "-", "route": "-", "frames": 0}
	for k, v := range fields {
		out[k] = v
	}
	return out
}
