package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	pjson "github.com/ajitpratap0/packscan/pkg/json"
	"github.com/ajitpratap0/packscan/pkg/scanerrors"
	"github.com/ajitpratap0/packscan/pkg/segment/packfile"
)

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect SEGMENT...",
		Short: "Print the layout of segment files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := opts.store(ctx)
			if err != nil {
				return err
			}
			opener := packfile.NewOpener(store, nil)
			out := cmd.OutOrStdout()

			for _, id := range args {
				seg, err := opener.Open(ctx, id)
				if err != nil {
					return scanerrors.Wrap(err, scanerrors.ErrorTypeSegmentOpen, "failed to open segment").
						WithDetail("segment", id)
				}
				footer := seg.(*packfile.Segment).Footer()
				if asJSON {
					err = writeFooterJSON(out, id, footer)
				} else {
					err = writeFooter(out, id, footer)
				}
				if cerr := seg.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the footer as JSON")
	return cmd
}

func writeFooter(w io.Writer, id string, f *packfile.Footer) error {
	if _, err := fmt.Fprintf(w, "segment %s: codec=%s rows=%d packs=%d\n", id, f.Codec, f.Rows(), len(f.Packs)); err != nil {
		return err
	}
	for i, d := range f.Columns {
		if _, err := fmt.Fprintf(w, "  column %d: %s\n", i, d); err != nil {
			return err
		}
	}
	for p, pack := range f.Packs {
		var stored, raw uint64
		for _, c := range pack.Chunks {
			stored += c.Stored
			raw += c.Raw
		}
		if _, err := fmt.Fprintf(w, "  pack %d: rows=%d stored=%d raw=%d\n", p, pack.Rows, stored, raw); err != nil {
			return err
		}
	}
	return nil
}

func writeFooterJSON(w io.Writer, id string, f *packfile.Footer) error {
	data, err := pjson.MarshalIndent(struct {
		Segment string           `json:"segment"`
		Rows    int64            `json:"rows"`
		Footer  *packfile.Footer `json:"footer"`
	}{id, f.Rows(), f}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
