package jsonlcli

import (
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/oremus-labs/ol-jsonl/internal/ndjson"
	"github.com/oremus-labs/ol-jsonl/internal/users"
	"github.com/spf13/cobra"
)

var (
	usersMode          string
	usersValidate      bool
	usersSchemaPath    string
	usersMaxFrameBytes int
	usersAcceptTail    bool
	usersLimit         int
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Stream users from the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := ndjson.ParseMode(usersMode)
		if err != nil {
			return err
		}
		codec, err := userCodec()
		if err != nil {
			return err
		}
		c, err := mustClient()
		if err != nil {
			return err
		}
		opts := ndjson.DecoderOptions{
			Mode:                   mode,
			MaxFrameBytes:          usersMaxFrameBytes,
			AcceptUnterminatedTail: usersAcceptTail,
		}
		seq := c.Users(cmd.Context(), codec, opts)
		return renderUsers(cmd.OutOrStdout(), cmd.ErrOrStderr(), seq, usersLimit, outputFormat)
	},
}

func init() {
	usersCmd.Flags().StringVar(&usersMode, "mode", "bare", "Framing mode to request: bare|enveloped")
	usersCmd.Flags().BoolVar(&usersValidate, "validate", false, "Validate every frame against the user schema")
	usersCmd.Flags().StringVar(&usersSchemaPath, "schema", "", "JSON Schema file used by --validate (defaults to the built-in schema)")
	usersCmd.Flags().IntVar(&usersMaxFrameBytes, "max-frame-bytes", ndjson.DefaultMaxFrameBytes, "Largest frame accepted before the stream is abandoned")
	usersCmd.Flags().BoolVar(&usersAcceptTail, "accept-tail", false, "Decode a final frame missing its newline")
	usersCmd.Flags().IntVar(&usersLimit, "limit", 0, "Stop after N users (0 streams everything)")
}

func userCodec() (ndjson.Codec[users.User], error) {
	if !usersValidate {
		return users.NewCodec(nil)
	}
	schema := []byte(users.Schema)
	if usersSchemaPath != "" {
		data, err := os.ReadFile(usersSchemaPath)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		schema = data
	}
	return users.NewCodec(schema)
}

// renderUsers drains seq into out. Per-record errors are reported on errOut and
// skipped; a terminal error stops rendering and is returned after the records
// received so far are written.
func renderUsers(out, errOut io.Writer, seq iter.Seq2[users.User, error], limit int, format string) error {
	var (
		rows    int
		tw      = newTable(out)
		failure error
	)
	if format == "table" || format == "" {
		fmt.Fprintln(tw, "ID\tNAME")
	}
	for u, err := range seq {
		if err != nil {
			if ndjson.IsTerminal(err) {
				failure = err
				break
			}
			printErrorLine(errOut, "skipping frame: %v", err)
			continue
		}
		switch format {
		case "json":
			if err := printJSONLine(out, u); err != nil {
				return err
			}
		case "yaml":
			if err := printYAML(out, u); err != nil {
				return err
			}
		default:
			fmt.Fprintf(tw, "%d\t%s\n", u.ID, u.Name)
		}
		rows++
		if limit > 0 && rows >= limit {
			break
		}
	}
	flushTable(tw)
	return failure
}
