package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tanishra/smartinfo/retrieval"
)

func (c *cli) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Index PDF, DOCX, text and image files for document questions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := c.loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			reports, err := app.Ingest(cmd.Context(), args...)
			if perr := c.printReports(cmd.OutOrStdout(), reports); perr != nil {
				return perr
			}
			return err
		},
	}
}

type reportJSON struct {
	Name       string `json:"name"`
	DocumentID string `json:"document_id,omitempty"`
	Format     string `json:"format,omitempty"`
	Pages      int    `json:"pages"`
	OCRPages   int    `json:"ocr_pages"`
	EmptyPages int    `json:"empty_pages"`
	Chunks     int    `json:"chunks"`
	Skipped    bool   `json:"skipped,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (c *cli) printReports(w io.Writer, reports []retrieval.Report) error {
	if c.flags.JSON {
		enc := json.NewEncoder(w)
		for _, r := range reports {
			out := reportJSON{
				Name:       r.Name,
				DocumentID: r.DocumentID,
				Format:     string(r.Format),
				Pages:      r.Pages,
				OCRPages:   r.OCRPages,
				EmptyPages: r.EmptyPages,
				Chunks:     r.Chunks,
				Skipped:    r.Skipped,
				DurationMS: r.Duration.Milliseconds(),
			}
			if r.Err != nil {
				out.Error = r.Err.Error()
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range reports {
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s %s: %v\n", c.styles.errPrefix(), r.Name, r.Err)
		case r.Skipped:
			fmt.Fprintf(w, "%s %s: no extractable text, skipped\n", c.styles.warnPrefix(), r.Name)
		default:
			fmt.Fprintf(w, "%s %s %s\n", c.styles.success("indexed"), r.Name,
				c.styles.dim(fmt.Sprintf("(%s, %d pages, %d OCR, %d chunks)", r.Format, r.Pages, r.OCRPages, r.Chunks)))
		}
	}
	return nil
}
