package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kittyplace/imgplace/pkg/formula"
	"github.com/kittyplace/imgplace/pkg/idstore"
)

// defaultListFormat is used when --print isn't given: ID, cell
// footprint, source path.
const defaultListFormat = `%i\t%cx%r\t%P`

// newListCmd prints one line per known image ID, most recently touched
// first: by default the ID, its cell footprint and its source path.
// --print FORMAT overrides the per-entry line with a format-specifier
// string.
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list all known image IDs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			sess, err := openSession(cfg)
			if err != nil {
				return err
			}
			defer sess.Close()

			entries, err := sess.ids.List(cmd.Context())
			if err != nil {
				return err
			}
			entries = filterByAge(entries)
			format := flagPrint
			if format == "" {
				format = defaultListFormat
			}
			for _, e := range entries {
				line, err := formula.FormatInfo(format, entryInfo(e))
				if err != nil {
					return err
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}

// entryInfo derives a formula.Info from a list entry, recovering the
// path/cols/rows the description JSON carries when present; force-id'd
// entries with no file backing leave those fields blank.
func entryInfo(e idstore.Entry) formula.Info {
	info := formula.Info{
		ID: e.ID, Description: e.Description,
		AccessTime: e.Atime.UTC().Format(time.RFC3339),
	}
	if desc, err := parseDescription(e.Description); err == nil {
		info.Path = desc.Path
		info.Cols = desc.Cols
		info.Rows = desc.Rows
		if desc.MtimeEpochSecs != 0 {
			info.ModTime = time.Unix(desc.MtimeEpochSecs, 0).UTC().Format(time.RFC3339)
		}
	}
	return info
}

func filterByAge(entries []idstore.Entry) []idstore.Entry {
	if flagOlder == "" && flagNewer == "" && flagLast <= 0 && flagExceptLast <= 0 {
		return entries
	}
	out := entries
	if flagOlder != "" {
		if d, err := time.ParseDuration(flagOlder); err == nil {
			out = filterEntries(out, func(e idstore.Entry) bool { return time.Since(e.Atime) >= d })
		}
	}
	if flagNewer != "" {
		if d, err := time.ParseDuration(flagNewer); err == nil {
			out = filterEntries(out, func(e idstore.Entry) bool { return time.Since(e.Atime) < d })
		}
	}
	if flagLast > 0 && flagLast < len(out) {
		out = out[:flagLast]
	}
	if flagExceptLast > 0 {
		if flagExceptLast < len(out) {
			out = out[flagExceptLast:]
		} else {
			out = nil
		}
	}
	return out
}

func filterEntries(entries []idstore.Entry, keep func(idstore.Entry) bool) []idstore.Entry {
	var out []idstore.Entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
