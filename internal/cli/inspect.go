package cli

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/cobra"

	"github.com/matzehuels/cbzkit/pkg/archive"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var showEntries bool

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show the entries and metadata of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := archive.Open(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			printArchive(r, showEntries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showEntries, "entries", true, "list every entry")
	return cmd
}

func printArchive(r *archive.Reader, showEntries bool) {
	entries := r.Entries()
	var size uint64
	for _, e := range entries {
		size += e.Size
	}

	fmt.Println(StyleTitle.Render(r.Path()))
	printKeyValue("Entries", StyleNumber.Render(strconv.Itoa(len(entries))))
	printKeyValue("Size", formatBytes(int64(size)))

	switch {
	case r.Metadata != nil:
		printMetadata(r.Metadata)
	case r.Comment() != "":
		printDetail("comment is not ComicBookInfo metadata")
	}

	if showEntries && len(entries) > 0 {
		fmt.Println()
		fmt.Println(entryTable(entries).Render())
	}
}

func printMetadata(md *archive.Metadata) {
	if md.AppID != "" {
		printKeyValue("Written by", md.AppID)
	}
	if md.LastModified != nil {
		printKeyValue("Modified", md.LastModified.Format(time.RFC3339))
	}
	for _, kv := range metadataFields(md.Info) {
		printKeyValue(kv[0], kv[1])
	}
}

// metadataFields lists the non-empty ComicBookInfo fields as label/value
// pairs in display order.
func metadataFields(info *archive.ComicBookInfo) [][2]string {
	if info == nil {
		return nil
	}
	var out [][2]string
	add := func(label, value string) {
		if value != "" {
			out = append(out, [2]string{label, value})
		}
	}
	num := func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	}

	add("Series", info.Series)
	add("Title", info.Title)
	add("Volume", num(info.Volume))
	add("Issue", num(info.Issue))
	add("Publisher", info.Publisher)
	if info.PublicationYear != 0 {
		date := num(info.PublicationYear)
		if info.PublicationMonth != 0 {
			date = fmt.Sprintf("%d-%02d", info.PublicationYear, info.PublicationMonth)
		}
		add("Published", date)
	}
	add("Genre", info.Genre)
	add("Language", info.Language)
	add("Country", info.Country)
	add("Rating", num(info.Rating))
	add("Tags", strings.Join(info.Tags, ", "))
	for _, cr := range info.Credits {
		add(cmp.Or(cr.Role, "Credit"), cr.Person)
	}
	add("Comments", info.Comments)
	return out
}

func entryTable(entries []archive.Entry) *table.Table {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Name, e.Format.String(), formatBytes(int64(e.Size)), methodName(e.Method)}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("Entry", "Format", "Size", "Method").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return styleHeader
			}
			if col == 0 {
				return StyleValue
			}
			return StyleDim
		})
}

func methodName(m uint16) string {
	switch m {
	case zip.Store:
		return "store"
	case zip.Deflate:
		return "deflate"
	}
	return "method " + strconv.Itoa(int(m))
}
