package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/classcycle/pkg/xmlutil"
)

func escapeCmd() *cobra.Command {
	var quotes bool

	cmd := &cobra.Command{
		Use:   "escape [text...]",
		Short: "Escape text for XML markup; reads stdin when no text is given",
		Example: `  classcycle escape '<hel&lo>'
  cat names.txt | classcycle escape --quotes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := xmlutil.Options{Quotes: quotes}
			out := bufio.NewWriter(cmd.OutOrStdout())

			if len(args) > 0 {
				if _, err := xmlutil.WriteEscaped(out, strings.Join(args, " "), opts); err != nil {
					return fmt.Errorf("escape: %w", err)
				}
				if err := out.WriteByte('\n'); err != nil {
					return fmt.Errorf("escape: %w", err)
				}
				return out.Flush()
			}

			if err := escapeStream(out, cmd.InOrStdin(), opts); err != nil {
				return fmt.Errorf("escape: %w", err)
			}
			return out.Flush()
		},
	}

	cmd.Flags().BoolVarP(&quotes, "quotes", "q", false, "also escape quotes for attribute values")
	return cmd
}

// escapeStream escapes r chunk by chunk. Every escaped character is a single
// byte, so chunk boundaries never split an entity.
func escapeStream(w io.Writer, r io.Reader, opts xmlutil.Options) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, writeErr := xmlutil.WriteEscaped(w, string(buf[:n]), opts); writeErr != nil {
				return writeErr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
