package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/tablegest/internal/extractor"
	"github.com/dgallion1/tablegest/internal/parser"
	"github.com/dgallion1/tablegest/internal/table"
)

var (
	extractURL       string
	extractFormat    string
	extractConfig    string
	extractNoSpan    bool
	extractNoPad     bool
	extractNoContext bool
	extractMarkdown  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract the tables of a document",
	Long: `Reads a document from file, or from stdin when no file is given, and
prints its tables as JSON. Table ids are derived from --url, which defaults
to the file's file:// URL.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractURL, "url", "", "absolute URL of the document")
	extractCmd.Flags().StringVar(&extractFormat, "format", "", "input format for stdin (html, md, csv, tsv, docx)")
	extractCmd.Flags().StringVar(&extractConfig, "config", "", "YAML file with extractor tag settings")
	extractCmd.Flags().BoolVar(&extractNoSpan, "no-span", false, "keep rowspan/colspan cells unexpanded")
	extractCmd.Flags().BoolVar(&extractNoPad, "no-pad", false, "do not pad short rows")
	extractCmd.Flags().BoolVar(&extractNoContext, "no-context", false, "skip section context")
	extractCmd.Flags().BoolVar(&extractMarkdown, "markdown", false, "print markdown instead of JSON")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg := extractor.DefaultConfig()
	if extractConfig != "" {
		var err error
		if cfg, err = extractor.LoadConfig(extractConfig); err != nil {
			return err
		}
	}

	name := "stdin." + formatOr(extractFormat, "html")
	var in io.Reader = cmd.InOrStdin()
	docURL := extractURL
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
		name = args[0]
		if extractFormat != "" {
			name = "input." + formatOr(extractFormat, "html")
		}
		if docURL == "" {
			if docURL, err = fileURL(args[0]); err != nil {
				return err
			}
		}
	}
	if docURL == "" {
		return fmt.Errorf("--url is required when reading stdin")
	}

	p, err := parser.ForFile(name)
	if err != nil {
		return err
	}
	doc, err := p.Parse(in)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	opts := extractor.Options{
		AutoSpan:       !extractNoSpan,
		AutoPad:        !extractNoPad,
		ExtractContext: !extractNoContext,
	}
	tables, err := extractor.New(cfg, logger(cmd)).Extract(docURL, doc, opts)
	if err != nil {
		return err
	}

	if extractMarkdown {
		return writeMarkdown(cmd.OutOrStdout(), tables)
	}
	if tables == nil {
		tables = []*table.Table{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(tables)
}

func writeMarkdown(w io.Writer, tables []*table.Table) error {
	for i, t := range tables {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, t.Markdown()); err != nil {
			return err
		}
	}
	return nil
}

func formatOr(format, fallback string) string {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		return fallback
	}
	return format
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}
